// Package openapi embeds the OpenAPI 3 description of the /api/v1 REST
// surface.
//
// Load parses and validates the document. Handler serves it as JSON at
// /api/v1/openapi.json, and Validator wraps the API handler so that
// requests are checked against the document before they reach it:
// unknown routes, bad query parameters and malformed bodies are rejected
// with a 400 or 404 {"error": "..."} response.
package openapi

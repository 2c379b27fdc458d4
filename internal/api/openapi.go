package api

import (
	"net/http"

	"github.com/mattjoyce/pumpkin/internal/script"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the HTTP surface. The
// /eval description lists the instructions the engine was assembled with.
func buildOpenAPIDoc(catalog []script.HandlerInfo, secured bool) map[string]any {
	modules := map[string]any{}
	for _, h := range catalog {
		modules[h.Name] = h.Instructions
	}

	jsonResponse := func(desc, schema string) map[string]any {
		return map[string]any{
			"description": desc,
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": "#/components/schemas/" + schema},
				},
			},
		}
	}

	doc := map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "PumpkinDB",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/healthz": map[string]any{
				"get": map[string]any{
					"operationId": "healthz",
					"security":    []any{},
					"responses":   map[string]any{"200": jsonResponse("Service health", "Healthz")},
				},
			},
			"/instructions": map[string]any{
				"get": map[string]any{
					"operationId": "instructions",
					"responses":   map[string]any{"200": map[string]any{"description": "Handlers in dispatch order"}},
				},
			},
			"/events": map[string]any{
				"get": map[string]any{
					"operationId": "events",
					"summary":     "Engine lifecycle events as server-sent events",
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Event stream",
							"content":     map[string]any{"text/event-stream": map[string]any{}},
						},
					},
				},
			},
			"/eval": map[string]any{
				"post": map[string]any{
					"operationId":       "eval",
					"summary":           "Run a program and return its final stack",
					"x-instruction-set": modules,
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"text/plain":               map[string]any{"schema": map[string]any{"type": "string"}},
							"application/octet-stream": map[string]any{"schema": map[string]any{"type": "string", "format": "binary"}},
						},
					},
					"responses": map[string]any{
						"200": jsonResponse("Program completed", "Eval"),
						"400": jsonResponse("Program did not compile", "SyntaxError"),
						"413": jsonResponse("Body too large", "Error"),
						"422": jsonResponse("Program aborted", "Eval"),
					},
				},
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": map[string]any{
					"type":       "object",
					"properties": map[string]any{"error": map[string]any{"type": "string"}},
				},
				"SyntaxError": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error":  map[string]any{"type": "string"},
						"offset": map[string]any{"type": "integer"},
						"token":  map[string]any{"type": "string"},
					},
				},
				"Healthz": map[string]any{"type": "object"},
				"Eval": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"env_id":      map[string]any{"type": "string", "format": "uuid"},
						"stack":       map[string]any{"type": "array", "items": map[string]any{"type": "string", "contentEncoding": "base16"}},
						"error":       map[string]any{"type": "object"},
						"duration_ms": map[string]any{"type": "integer"},
					},
				},
			},
		},
	}

	if secured {
		components := doc["components"].(map[string]any)
		components["securitySchemes"] = map[string]any{
			"BearerAuth": map[string]any{"type": "http", "scheme": "bearer"},
		}
		doc["security"] = []any{map[string]any{"BearerAuth": []any{}}}
	}
	return doc
}

// handleOpenAPI handles GET /openapi.json.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.engine.Catalog(), s.config.Token != ""))
}

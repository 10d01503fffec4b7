package api

import "github.com/mattjoyce/taskd/internal/protocol"

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the task API.
func buildOpenAPIDoc() map[string]any {
	actions := make([]string, 0, len(protocol.Actions()))
	for _, a := range protocol.Actions() {
		actions = append(actions, string(a))
	}
	errorTypes := make([]string, 0, len(protocol.ErrorTypes()))
	for _, t := range protocol.ErrorTypes() {
		errorTypes = append(errorTypes, string(t))
	}

	bearer := []any{map[string]any{"BearerAuth": []string{}}}
	jsonBody := func(ref string) map[string]any {
		return map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/" + ref},
			},
		}
	}
	taskIDParam := map[string]any{
		"name":     "taskID",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string"},
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "taskd",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/healthz": map[string]any{
				"get": map[string]any{
					"operationId": "healthz",
					"responses":   map[string]any{"200": map[string]any{"description": "Service is up"}},
				},
			},
			"/tasks": map[string]any{
				"post": map[string]any{
					"operationId": "submitTask",
					"summary":     "Execute one task and wait for its result",
					"security":    bearer,
					"parameters": []any{map[string]any{
						"name":   "timeout",
						"in":     "query",
						"schema": map[string]any{"type": "string", "example": "30s"},
					}},
					"requestBody": map[string]any{"required": true, "content": jsonBody("TaskRequest")},
					"responses": map[string]any{
						"200": map[string]any{"description": "Task outcome", "content": jsonBody("TaskResponse")},
						"400": map[string]any{"description": "Bad query parameter"},
						"401": map[string]any{"description": "Missing or invalid API key"},
					},
				},
			},
			"/tasks/{taskID}": map[string]any{
				"get": map[string]any{
					"operationId": "getTask",
					"summary":     "Journal entries for a task",
					"security":    bearer,
					"parameters":  []any{taskIDParam},
					"responses": map[string]any{
						"200": map[string]any{"description": "Journal entries"},
						"404": map[string]any{"description": "Unknown task or journal disabled"},
					},
				},
				"delete": map[string]any{
					"operationId": "cancelTask",
					"summary":     "Cancel an in-flight task",
					"security":    bearer,
					"parameters":  []any{taskIDParam},
					"responses": map[string]any{
						"202": map[string]any{"description": "Cancellation requested"},
						"404": map[string]any{"description": "Task is not in flight"},
					},
				},
			},
			"/events": map[string]any{
				"get": map[string]any{
					"operationId": "events",
					"summary":     "Server-sent stream of task lifecycle events",
					"security":    bearer,
					"responses":   map[string]any{"200": map[string]any{"description": "text/event-stream"}},
				},
			},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
			"schemas": map[string]any{
				"TaskRequest": map[string]any{
					"type":                 "object",
					"required":             []string{"id", "action"},
					"additionalProperties": false,
					"properties": map[string]any{
						"id":        map[string]any{"type": "string"},
						"action":    map[string]any{"type": "string", "enum": actions},
						"path":      map[string]any{"type": "string"},
						"command":   map[string]any{"type": "string"},
						"arguments": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"content": map[string]any{
							"type":     "object",
							"required": []string{"encoding", "value"},
							"properties": map[string]any{
								"encoding": map[string]any{"type": "string", "example": "utf-8"},
								"value":    map[string]any{"type": "string"},
							},
						},
						"environment": map[string]any{
							"type":                 "object",
							"additionalProperties": map[string]any{"type": []string{"string", "number", "boolean"}},
						},
					},
				},
				"TaskResponse": map[string]any{
					"type":     "object",
					"required": []string{"id", "action", "success"},
					"properties": map[string]any{
						"id":      map[string]any{"type": "string"},
						"action":  map[string]any{"type": "string"},
						"success": map[string]any{"type": "boolean"},
						"error": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"type":    map[string]any{"type": "string", "enum": errorTypes},
								"message": map[string]any{"type": "string"},
							},
						},
					},
				},
			},
		},
	}
}

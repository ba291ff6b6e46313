// Package docs registers the collector API description with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/i": {
            "get": {
                "description": "Accepts one request from the telemetry SDK as a query string. When a salt is configured the trailing checksum256 parameter must match.",
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Ingest an SDK request",
                "parameters": [
                    {"type": "string", "description": "Application key", "name": "app_key", "in": "query", "required": true},
                    {"type": "string", "description": "Device identifier", "name": "device_id", "in": "query", "required": true},
                    {"type": "integer", "description": "Client time in milliseconds", "name": "timestamp", "in": "query"},
                    {"type": "string", "description": "sha256 of the encoded parameters and the salt", "name": "checksum256", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/main.ResultResponse"}}
                }
            },
            "post": {
                "description": "Accepts one request from the telemetry SDK as a form body. When a salt is configured the trailing checksum256 parameter must match.",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Ingest an SDK request",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/main.ResultResponse"}}
                }
            }
        },
        "/api/v1/requests": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Returns the most recent requests of the last 24 hours, newest first.",
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "List received requests",
                "parameters": [
                    {"type": "string", "description": "Restrict to one device", "name": "device_id", "in": "query"},
                    {"type": "integer", "description": "Maximum number of requests (default: 100, max: 1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.RequestsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/main.ResultResponse"}}
                }
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Removes stored requests, all of them or those of one device.",
                "produces": ["application/json"],
                "tags": ["requests"],
                "summary": "Delete received requests",
                "parameters": [
                    {"type": "string", "description": "Restrict to one device", "name": "device_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.ResultResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/main.ResultResponse"}}
                }
            }
        }
    },
    "definitions": {
        "influx.RequestRecord": {
            "type": "object",
            "properties": {
                "app_key": {"type": "string"},
                "device_id": {"type": "string"},
                "kind": {"type": "string"},
                "method": {"type": "string"},
                "params": {"type": "object", "additionalProperties": {"type": "string"}},
                "time": {"type": "string"}
            }
        },
        "main.RequestsResponse": {
            "type": "object",
            "properties": {
                "count": {"type": "integer", "example": 2},
                "requests": {"type": "array", "items": {"$ref": "#/definitions/influx.RequestRecord"}}
            }
        },
        "main.ResultResponse": {
            "type": "object",
            "properties": {
                "result": {"type": "string", "example": "Success"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "description": "API Key authentication using X-API-Key header",
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Telemetry Collector API",
	Description:      "Development collector for the telemetry SDK: ingests SDK requests and lists what was received.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// Package docs holds the OpenAPI description served under /swagger.
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Dependency health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/upload-image": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Upload an image",
                "parameters": [
                    {"type": "file", "description": "Image file (jpeg, png, gif, webp; max 10 MB)", "name": "image", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.uploadResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/delete-image/{filename}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Delete an image",
                "parameters": [
                    {"type": "string", "description": "Stored filename", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.deleteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/check-image/{filename}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Check an image",
                "parameters": [
                    {"type": "string", "description": "Stored filename", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.checkResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.checkResponse"}}
                }
            }
        },
        "/api/images": {
            "get": {
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "List images",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.listResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/image-events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Image audit trail",
                "parameters": [
                    {"type": "integer", "description": "Page size (default 10, max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Offset", "name": "offset", "in": "query"},
                    {"type": "string", "description": "Only events for this filename", "name": "filename", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.EventListResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/uploads/{filename}": {
            "get": {
                "produces": ["image/jpeg", "image/png", "image/gif", "image/webp"],
                "tags": ["images"],
                "summary": "Fetch an image",
                "parameters": [
                    {"type": "string", "description": "Stored filename", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorPayload": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "code": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "handler.uploadResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "url": {"type": "string"},
                "filename": {"type": "string"},
                "originalName": {"type": "string"},
                "size": {"type": "integer"}
            }
        },
        "handler.deleteResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"}
            }
        },
        "handler.checkResponse": {
            "type": "object",
            "properties": {
                "exists": {"type": "boolean"},
                "filename": {"type": "string"},
                "size": {"type": "integer"},
                "modified": {"type": "string"}
            }
        },
        "handler.listResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "total": {"type": "integer"},
                "data": {"type": "array", "items": {"$ref": "#/definitions/model.Asset"}}
            }
        },
        "model.Asset": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "originalName": {"type": "string"},
                "contentType": {"type": "string"},
                "size": {"type": "integer"},
                "url": {"type": "string"},
                "modified": {"type": "string"}
            }
        },
        "model.AssetEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "filename": {"type": "string"},
                "action": {"type": "string", "enum": ["upload", "delete"]},
                "original_name": {"type": "string"},
                "size": {"type": "integer"},
                "content_type": {"type": "string"},
                "request_id": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "service.EventListResult": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "data": {"type": "array", "items": {"$ref": "#/definitions/model.AssetEvent"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Asset API",
	Description:      "Image upload, delivery and deletion.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

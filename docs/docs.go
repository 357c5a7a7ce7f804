// Package docs registers the OpenAPI description served under /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new account",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/AuthPayload"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Log in with email and password",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthPayload"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["auth"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthPayload"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["auth"],
                "summary": "Revoke a refresh token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["auth"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/User"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["users"],
                "summary": "List users",
                "parameters": [
                    {"in": "query", "name": "q", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/User"}}}
                }
            }
        },
        "/tasks": {
            "get": {
                "tags": ["tasks"],
                "summary": "List tasks",
                "parameters": [
                    {"in": "query", "name": "status", "type": "string", "enum": ["todo", "inprogress", "done"]},
                    {"in": "query", "name": "assignee", "type": "integer"},
                    {"in": "query", "name": "labels", "type": "string"},
                    {"in": "query", "name": "q", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "tags": ["tasks"],
                "summary": "Create a task",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CreateTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Task"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}/status": {
            "patch": {
                "tags": ["tasks"],
                "summary": "Move a task to another status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"type": "object", "properties": {"status": {"type": "string"}}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Task"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}/attachments": {
            "post": {
                "tags": ["attachments"],
                "summary": "Upload an attachment",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {"in": "formData", "name": "file", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Attachment"}}
                }
            }
        },
        "/labels": {
            "get": {
                "tags": ["labels"],
                "summary": "List labels",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Label"}}}
                }
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["dashboard"],
                "summary": "Board statistics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DashboardStats"}}
                }
            }
        },
        "/search/tasks": {
            "get": {
                "tags": ["search"],
                "summary": "Search tasks",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "q", "type": "string"},
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "assignee", "type": "integer"},
                    {"in": "query", "name": "labels", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "RegisterRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refreshToken": {"type": "string"}
            }
        },
        "AuthPayload": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/User"},
                "token": {"type": "string"},
                "refreshToken": {"type": "string"}
            }
        },
        "User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "color": {"type": "string"},
                "avatar": {"type": "string"},
                "dateJoined": {"type": "string", "format": "date-time"}
            }
        },
        "Label": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "color": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "CreateTaskRequest": {
            "type": "object",
            "required": ["title", "description", "dueDate"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string", "enum": ["todo", "inprogress", "done"]},
                "assigneeId": {"type": "integer"},
                "labelIds": {"type": "array", "items": {"type": "integer"}},
                "dueDate": {"type": "string", "format": "date"}
            }
        },
        "Task": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string"},
                "assigneeName": {"type": "string"},
                "dueDate": {"type": "string", "format": "date"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"},
                "labels": {"type": "array", "items": {"$ref": "#/definitions/Label"}},
                "attachmentCount": {"type": "integer"},
                "commentCount": {"type": "integer"}
            }
        },
        "Attachment": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "originalName": {"type": "string"},
                "url": {"type": "string"},
                "type": {"type": "string"},
                "size": {"type": "integer"},
                "taskId": {"type": "integer"},
                "uploadedBy": {"type": "integer"},
                "uploadedByName": {"type": "string"},
                "uploadedAt": {"type": "string", "format": "date-time"}
            }
        },
        "DashboardStats": {
            "type": "object",
            "properties": {
                "totalTasks": {"type": "integer"},
                "todoTasks": {"type": "integer"},
                "inProgressTasks": {"type": "integer"},
                "doneTasks": {"type": "integer"},
                "overdueTasks": {"type": "integer"},
                "totalUsers": {"type": "integer"},
                "tasksThisWeek": {"type": "integer"},
                "completedThisWeek": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type 'Bearer' followed by a space and JWT token"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/api",
	Schemes:          []string{"http"},
	Title:            "Kanban API",
	Description:      "Task board with labels, comments, attachments and activity",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

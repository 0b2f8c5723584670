// Package docs holds the OpenAPI description of the HTTP API, in the layout generated by swag init
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
        "/api/v1/health": {
            "get": {"tags": ["System"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "Service is healthy"}}}
        },
        "/api/v1/auth/oauth/login": {
            "post": {"tags": ["Authentication"], "summary": "OAuth Login", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.OAuthLoginRequest"}}],
                "responses": {"200": {"description": "Login successful"}, "400": {"description": "Validation error"}, "401": {"description": "Provider rejected the token"}, "500": {"description": "Internal server error"}}}
        },
        "/api/v1/auth/refresh": {
            "post": {"tags": ["Authentication"], "summary": "Refresh Tokens", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {"200": {"description": "Tokens refreshed"}, "401": {"description": "Invalid or expired refresh token"}}}
        },
        "/api/v1/videos": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Videos"], "summary": "Create Video", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.CreateVideoRequest"}}],
                "responses": {"201": {"description": "Video created"}, "400": {"description": "Validation error"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/v1/videos/{id}": {
            "delete": {"security": [{"BearerAuth": []}], "tags": ["Videos"], "summary": "Delete Video", "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Video deleted"}, "403": {"description": "Not the owner"}, "404": {"description": "Video not found"}}}
        },
        "/api/v1/videos/{id}/tags": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Videos"], "summary": "Assign Tags", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.AssignTagsRequest"}}],
                "responses": {"200": {"description": "Tags processed"}, "403": {"description": "Not the owner"}, "404": {"description": "Video not found"}, "500": {"description": "Every tag failed"}}}
        },
        "/api/v1/videos/{id}/like": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Engagement"], "summary": "Like Video", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Video liked"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["Engagement"], "summary": "Unlike Video", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Video unliked"}}}
        },
        "/api/v1/videos/{id}/comments": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Engagement"], "summary": "Comment on Video", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Comment added"}}}
        },
        "/api/v1/videos/{id}/views": {
            "post": {"tags": ["Engagement"], "summary": "Record View", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "View recorded"}}}
        },
        "/api/v1/comments/{id}": {
            "delete": {"security": [{"BearerAuth": []}], "tags": ["Engagement"], "summary": "Delete Comment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Comment deleted"}, "403": {"description": "Not allowed"}}}
        },
        "/api/v1/admin/videos/delete": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Admin Delete Videos", "responses": {"200": {"description": "Videos deleted"}}}
        },
        "/api/v1/admin/tags/delete": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Admin Delete Tags", "responses": {"200": {"description": "Tags deleted"}}}
        },
        "/api/v1/admin/users/delete": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Admin Delete Users", "responses": {"200": {"description": "Users deleted"}}}
        },
        "/api/v1/admin/maintenance/reconcile-tags": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin Maintenance"], "summary": "Reconcile Tag Usage Counts", "responses": {"200": {"description": "Tag counters reconciled"}}}
        },
        "/api/v1/admin/maintenance/reconcile-videos": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin Maintenance"], "summary": "Reconcile Video Counters", "responses": {"200": {"description": "Video counters reconciled"}}}
        },
        "/api/v1/admin/maintenance/reconcile-all": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin Maintenance"], "summary": "Reconcile Every Counter", "responses": {"200": {"description": "Counters reconciled"}}}
        },
        "/api/v1/admin/maintenance/tag-drift": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin Maintenance"], "summary": "Tag Usage Drift", "responses": {"200": {"description": "Drift report generated"}}}
        },
        "/api/v1/admin/maintenance/tag-drift.xlsx": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin Maintenance"], "summary": "Download Tag Usage Drift", "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"], "responses": {"200": {"description": "XLSX file"}}}
        },
        "/api/v1/admin/maintenance/last-report": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin Maintenance"], "summary": "Last Scheduled Reconciliation", "responses": {"200": {"description": "Last reconciliation report"}, "404": {"description": "No run recorded"}}}
        }
    },
    "definitions": {
        "dto.OAuthLoginRequest": {
            "type": "object",
            "required": ["access_token"],
            "properties": {"access_token": {"type": "string", "minLength": 10}}
        },
        "dto.CreateVideoRequest": {
            "type": "object",
            "required": ["media_url", "title"],
            "properties": {
                "title": {"type": "string", "maxLength": 255},
                "description": {"type": "string", "maxLength": 5000},
                "media_url": {"type": "string"},
                "thumbnail_url": {"type": "string"},
                "latitude": {"type": "number", "maximum": 90, "minimum": -90},
                "longitude": {"type": "number", "maximum": 180, "minimum": -180},
                "location_name": {"type": "string", "maxLength": 255},
                "tags": {"type": "array", "maxItems": 50, "items": {"type": "string"}}
            }
        },
        "dto.AssignTagsRequest": {
            "type": "object",
            "required": ["tags"],
            "properties": {"tags": {"type": "array", "maxItems": 50, "minItems": 1, "items": {"type": "string"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Geovid API",
	Description:      "Video sharing backend: tagging, engagement, cascade cleanup and counter reconciliation",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

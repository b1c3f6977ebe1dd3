// Package docs registers the OpenAPI document served at /api/swagger.
// Regenerate with `swag init -g cmd/server/main.go -o internal/docs` after
// changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Service health",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            }
        },
        "/auth/signup": {
            "post": {
                "tags": ["auth"],
                "summary": "User signup",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/service.SignupInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "User login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/service.LoginInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["auth"],
                "summary": "User logout",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            }
        },
        "/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/users/me/saved": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Bookmarked posts of the current user",
                "parameters": [
                    {"type": "integer", "in": "query", "name": "page"},
                    {"type": "integer", "in": "query", "name": "limit"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            }
        },
        "/users/username/{username}": {
            "get": {
                "tags": ["users"],
                "summary": "User by username",
                "parameters": [{"type": "string", "in": "path", "name": "username", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["users"],
                "summary": "User by id",
                "parameters": [{"type": "integer", "in": "path", "name": "id", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Update own profile",
                "consumes": ["application/json"],
                "parameters": [
                    {"type": "integer", "in": "path", "name": "id", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/models.UserPatch"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/users/{id}/avatar": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Upload own avatar",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"type": "integer", "in": "path", "name": "id", "required": true},
                    {"type": "file", "in": "formData", "name": "avatar", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/users/{id}/posts": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Create a post as yourself",
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"type": "integer", "in": "path", "name": "id", "required": true},
                    {"type": "string", "in": "formData", "name": "content"},
                    {"type": "string", "in": "formData", "name": "tags"},
                    {"type": "string", "in": "formData", "name": "category"},
                    {"type": "file", "in": "formData", "name": "media"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/posts": {
            "get": {
                "tags": ["posts"],
                "summary": "List posts newest first",
                "parameters": [
                    {"type": "integer", "in": "query", "name": "page"},
                    {"type": "integer", "in": "query", "name": "limit"},
                    {"type": "integer", "in": "query", "name": "userId"},
                    {"type": "string", "in": "query", "name": "category"},
                    {"type": "string", "in": "query", "name": "type", "enum": ["text", "image", "video"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            }
        },
        "/posts/{id}": {
            "get": {
                "tags": ["posts"],
                "summary": "Post by id",
                "parameters": [{"type": "integer", "in": "path", "name": "id", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/posts/{id}/like": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Like a post",
                "parameters": [{"type": "integer", "in": "path", "name": "id", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Remove a like",
                "parameters": [{"type": "integer", "in": "path", "name": "id", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            }
        },
        "/posts/{id}/save": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Bookmark a post",
                "parameters": [{"type": "integer", "in": "path", "name": "id", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Remove a bookmark",
                "parameters": [{"type": "integer", "in": "path", "name": "id", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            }
        },
        "/search": {
            "get": {
                "tags": ["search"],
                "summary": "Search users and posts",
                "parameters": [
                    {"type": "string", "in": "query", "name": "q", "required": true},
                    {"type": "string", "in": "query", "name": "type", "enum": ["all", "users", "posts"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/conversations": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Conversations of the current user",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Start a conversation",
                "consumes": ["application/json"],
                "responses": {
                    "200": {"description": "Existing direct conversation", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        },
        "/conversations/{id}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Message history",
                "parameters": [
                    {"type": "integer", "in": "path", "name": "id", "required": true},
                    {"type": "integer", "in": "query", "name": "page"},
                    {"type": "integer", "in": "query", "name": "limit"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Send a message",
                "parameters": [{"type": "integer", "in": "path", "name": "id", "required": true}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "models.Envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "string"},
                "pagination": {"$ref": "#/definitions/models.Pagination"}
            }
        },
        "models.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "totalPages": {"type": "integer"},
                "hasNext": {"type": "boolean"},
                "hasPrev": {"type": "boolean"}
            }
        },
        "models.UserPatch": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "bio": {"type": "string"},
                "location": {"type": "string"},
                "website": {"type": "string"}
            }
        },
        "service.SignupInput": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "username": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "service.LoginInput": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:5000",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "vibefeed API",
	Description:      "Social feed API with profiles, posts, likes, bookmarks, search and direct messages",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

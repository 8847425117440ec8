// Package sso registers the generated OpenAPI document with the swag runtime
// so the /swagger/ UI can serve it. Regenerate with `swag init` after changing
// handler annotations.
package sso

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Mercury Platform Team",
            "url": "https://github.com/mercuryedu/mercury-sso"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version"}
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks"},
                    "503": {"description": "service not ready"}
                }
            }
        },
        "/v1/sso/oidc/authorize": {
            "get": {
                "produces": ["application/json"],
                "tags": ["OIDC"],
                "summary": "Start an OpenID Connect login",
                "parameters": [
                    {"type": "string", "name": "relying_party_id", "in": "query", "required": true},
                    {"type": "string", "name": "continue_to", "in": "query"},
                    {"type": "string", "name": "invalidate_token", "in": "query"}
                ],
                "responses": {
                    "302": {"description": "Redirect to the provider authorization endpoint"},
                    "400": {"description": "error, error_description"},
                    "404": {"description": "error, error_description"}
                }
            }
        },
        "/v1/sso/oidc/callback": {
            "get": {
                "produces": ["application/json"],
                "tags": ["OIDC"],
                "summary": "OpenID Connect redirect endpoint",
                "parameters": [
                    {"type": "string", "name": "code", "in": "query", "required": true},
                    {"type": "string", "name": "state", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "web_session_token, valid_until, account_id"},
                    "400": {"description": "error, error_description"},
                    "401": {"description": "error, error_description"}
                }
            }
        },
        "/v1/sso/oidc/logout": {
            "get": {
                "produces": ["application/json"],
                "tags": ["OIDC"],
                "summary": "End a web session",
                "parameters": [
                    {"type": "string", "name": "token", "in": "query"},
                    {"type": "string", "name": "source", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "redirect_to"},
                    "401": {"description": "error, error_description"}
                }
            }
        },
        "/v1/sso/lti11/launch": {
            "post": {
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["LTI"],
                "summary": "LTI 1.1 tool launch",
                "responses": {
                    "200": {"description": "session JSON"},
                    "202": {"description": "hash, launch_request_id"},
                    "400": {"description": "error, error_description"},
                    "401": {"description": "error, error_description"},
                    "404": {"description": "error, error_description"}
                }
            }
        },
        "/v1/sso/lti11/provision": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["LTI"],
                "summary": "Complete an LTI launch continuation",
                "responses": {
                    "200": {"description": "session JSON"},
                    "400": {"description": "error, error_description"},
                    "401": {"description": "error, error_description"},
                    "404": {"description": "error, error_description"}
                }
            }
        },
        "/v1/sso/credentials": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Register an OIDC relying party",
                "responses": {
                    "201": {"description": "registration without secret"},
                    "400": {"description": "error, error_description"},
                    "409": {"description": "error, error_description"}
                }
            }
        },
        "/v1/sso/consumers": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Register an LTI 1.1 tool consumer",
                "responses": {
                    "201": {"description": "registration without secret"},
                    "400": {"description": "error, error_description"},
                    "409": {"description": "error, error_description"}
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Admin bearer token. Format: \"Bearer {token}\"."
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Mercury SSO API",
	Description:      "Federated authentication engine for the Mercury educational platform.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

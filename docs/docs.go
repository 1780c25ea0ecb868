package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Health Check",
                "description": "Check if server is running",
                "produces": ["application/json"],
                "responses": {
                    "200": {
                        "description": "Server is healthy"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Health"],
                "summary": "Readiness Check",
                "description": "Check that the cart store backend is reachable",
                "produces": ["application/json"],
                "responses": {
                    "200": {
                        "description": "Cart store is ready"
                    },
                    "503": {
                        "description": "Cart store is not reachable"
                    }
                }
            }
        },
        "/cgi-bin/shoppingcart": {
            "post": {
                "tags": ["Cart"],
                "summary": "Add to cart",
                "description": "Adds count units of item to the visitor identified by the UID cookie. A visitor without a known cookie gets a new record and a Set-Cookie header. An empty item only shows the cart.",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["text/html"],
                "parameters": [
                    {
                        "in": "formData",
                        "name": "item",
                        "type": "string",
                        "enum": ["computer", "phone", "printer"]
                    },
                    {
                        "in": "formData",
                        "name": "count",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Cart page"
                    },
                    "400": {
                        "description": "Malformed input (strict mode only)"
                    },
                    "503": {
                        "description": "No visitor identifiers left"
                    }
                }
            }
        },
        "/cgi-bin/calculator": {
            "post": {
                "tags": ["Pages"],
                "summary": "Calculator",
                "description": "Evaluates n1 op n2 where op is one of add, sub, mul or div",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["text/html"],
                "parameters": [
                    {"in": "formData", "name": "n1", "type": "integer", "required": true},
                    {"in": "formData", "name": "op", "type": "string", "required": true, "enum": ["add", "sub", "mul", "div"]},
                    {"in": "formData", "name": "n2", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "Result or failure page"
                    }
                }
            }
        },
        "/cgi-bin/file_upload": {
            "post": {
                "tags": ["Pages"],
                "summary": "File upload",
                "consumes": ["multipart/form-data"],
                "produces": ["text/html"],
                "parameters": [
                    {"in": "formData", "name": "file", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "File stored"
                    },
                    "409": {
                        "description": "A file with that name already exists"
                    },
                    "413": {
                        "description": "File too large"
                    }
                }
            }
        },
        "/cgi-bin/save_color": {
            "post": {
                "tags": ["Cookies"],
                "summary": "Save colour",
                "description": "Stores the colour as a #rrggbb cookie",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "color",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "red": {"type": "integer", "example": 255},
                                "green": {"type": "integer", "example": 0},
                                "blue": {"type": "integer", "example": 16}
                            }
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Colour saved"
                    },
                    "400": {
                        "description": "Invalid input"
                    }
                }
            }
        },
        "/api/v1/visitors": {
            "get": {
                "tags": ["Visitors"],
                "summary": "List visitors",
                "description": "Returns every visitor record in store order",
                "produces": ["application/json"],
                "responses": {
                    "200": {
                        "description": "Visitor records"
                    }
                }
            }
        },
        "/api/v1/visitors/{id}": {
            "get": {
                "tags": ["Visitors"],
                "summary": "Get visitor",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "Visitor record"
                    },
                    "404": {
                        "description": "Visitor not found"
                    }
                }
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Storefront API",
	Description:      "Storefront cart and CGI pages",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

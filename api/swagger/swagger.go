package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Kindergarten Admin API",
        "description": "Role-scoped administration backend for kindergarten chains",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Login, token refresh and password management"},
        {"name": "Organizations", "description": "Kindergarten organizations"},
        {"name": "Classes", "description": "Classes within an organization"},
        {"name": "Teachers", "description": "Teacher roster and class assignments"},
        {"name": "Children", "description": "Enrolled children"},
        {"name": "SelectionAreas", "description": "Activity areas inside a class"},
        {"name": "SelectionRecords", "description": "Daily child-to-area assignments"},
        {"name": "Dashboard", "description": "Scoped statistics"},
        {"name": "Users", "description": "Account administration"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login with captcha-guarded credentials",
                "responses": {
                    "200": {"description": "Token pair issued"}
                }
            }
        },
        "/selection-records": {
            "post": {
                "tags": ["SelectionRecords"],
                "summary": "Assign a child to a selection area for a date",
                "responses": {
                    "201": {"description": "Record created or moved"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document. Regenerate with swag init when the
// annotated handlers change.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

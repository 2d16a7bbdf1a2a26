package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Schuelertreff Scheduling API",
        "description": "Recurring lesson scheduling and teacher availability matching",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token refresh"},
        {"name": "Suggestions", "description": "Teacher availability matching"},
        {"name": "Contracts", "description": "Recurring lesson contracts"},
        {"name": "Teachers", "description": "Teacher roster and hiring pipeline"},
        {"name": "Customers", "description": "Private customers, class customers and schools"},
        {"name": "Subjects", "description": "Subject catalogue"},
        {"name": "Lessons", "description": "Materialized lesson occurrences"},
        {"name": "Leaves", "description": "Absence filing and review"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/suggest": {
            "post": {
                "tags": ["Suggestions"],
                "summary": "Suggest teachers for a contract",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SuggestionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts": {
            "get": {
                "tags": ["Contracts"],
                "summary": "List contracts",
                "parameters": [
                    {"name": "teacher_id", "in": "query", "type": "integer"},
                    {"name": "customer_id", "in": "query", "type": "integer"},
                    {"name": "state", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Contracts"],
                "summary": "Create contract",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ContractPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict"}
                }
            }
        },
        "/contracts/{id}": {
            "get": {
                "tags": ["Contracts"],
                "summary": "Get contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Contracts"],
                "summary": "Update contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ContractPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict"}
                }
            },
            "delete": {
                "tags": ["Contracts"],
                "summary": "Delete contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Contract still produces upcoming dates"}
                }
            }
        },
        "/contracts/{id}/state": {
            "put": {
                "tags": ["Contracts"],
                "summary": "Accept or decline a contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition"}
                }
            }
        },
        "/teachers": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List teachers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Teachers"],
                "summary": "Register a teacher applicant",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/application-state": {
            "put": {
                "tags": ["Teachers"],
                "summary": "Advance a teacher through the hiring pipeline",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition"}
                }
            }
        },
        "/teachers/{id}/blocked-contracts": {
            "get": {
                "tags": ["Teachers"],
                "summary": "Contracts producing dates in a range",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves": {
            "post": {
                "tags": ["Leaves"],
                "summary": "File a leave",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/{id}/state": {
            "put": {
                "tags": ["Leaves"],
                "summary": "Accept or decline a leave",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Leave already settled"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "SuggestionRequest": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "integer"},
                "customer_ids": {"type": "array", "items": {"type": "integer"}},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "weekday": {"type": "integer"},
                "interval_weeks": {"type": "integer"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "exclude_contracts": {"type": "array", "items": {"type": "integer"}},
                "original_teacher_id": {"type": "integer"}
            },
            "required": ["subject_id", "customer_ids"]
        },
        "ContractPayload": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "integer"},
                "customer_ids": {"type": "array", "items": {"type": "integer"}},
                "teacher_id": {"type": "integer"},
                "interval_weeks": {"type": "integer"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
            },
            "required": ["subject_id", "customer_ids", "teacher_id", "interval_weeks", "start_date", "start_time", "end_time"]
        },
        "StateRequest": {
            "type": "object",
            "properties": {
                "state": {"type": "string"}
            },
            "required": ["state"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
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
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

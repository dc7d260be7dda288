package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ProEdge Enrollment API",
        "description": "Enrollment orchestration: admissions, payments, referrals and invoices",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Enrollments", "description": "Admission and enrollment lifecycle"},
        {"name": "Payments", "description": "Gateway verification, webhooks and invoices"},
        {"name": "Referrals", "description": "Referral discount codes"},
        {"name": "Auth", "description": "Admin console authentication"}
    ],
    "paths": {
        "/enrollments/initiate": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Initiate an enrollment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Gateway unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/verify": {
            "post": {
                "tags": ["Payments"],
                "summary": "Verify a checkout payment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyPaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "Confirmed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid signature", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Payment not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/webhook": {
            "post": {
                "tags": ["Payments"],
                "summary": "Gateway webhook receiver",
                "parameters": [
                    {"name": "X-Razorpay-Signature", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Received", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid signature", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List payments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "provider", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invoices/download": {
            "get": {
                "tags": ["Payments"],
                "summary": "Download an invoice PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF stream"},
                    "401": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/referrals/{code}": {
            "get": {
                "tags": ["Referrals"],
                "summary": "Preview a referral discount",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/referrals": {
            "get": {
                "tags": ["Referrals"],
                "summary": "List referral codes",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Referrals"],
                "summary": "Create referral code",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReferralRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/referrals/{id}": {
            "delete": {
                "tags": ["Referrals"],
                "summary": "Retire a referral code",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Admin console login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AdmissionRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "contact": {"type": "string"},
                "course_id": {"type": "string"},
                "batch_id": {"type": "string"},
                "payment_mode": {"type": "string"},
                "payment_option": {"type": "string"},
                "referral_code": {"type": "string"},
                "dob": {"type": "string"},
                "gender": {"type": "string"},
                "address": {"type": "string"},
                "parent_name": {"type": "string"},
                "parent_contact": {"type": "string"},
                "current_school": {"type": "string"},
                "class_year": {"type": "string"},
                "education_level": {"type": "string"},
                "board": {"type": "string"},
                "batch_timing": {"type": "string"},
                "total_fees": {"type": "integer"},
                "original_fees": {"type": "integer"},
                "advance_amount": {"type": "integer"},
                "installment1_amount": {"type": "integer"},
                "installment1_date": {"type": "string"},
                "installment2_amount": {"type": "integer"},
                "installment2_date": {"type": "string"},
                "installment3_amount": {"type": "integer"},
                "installment3_date": {"type": "string"}
            },
            "required": ["full_name", "email", "contact", "course_id", "payment_mode"]
        },
        "VerifyPaymentRequest": {
            "type": "object",
            "properties": {
                "order_id": {"type": "string"},
                "payment_id": {"type": "string"},
                "signature": {"type": "string"}
            },
            "required": ["order_id", "payment_id", "signature"]
        },
        "CreateReferralRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "discount_percent": {"type": "number"},
                "active": {"type": "boolean"}
            },
            "required": ["code", "discount_percent"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
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
                "pagination": {"$ref": "#/definitions/Pagination"}
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

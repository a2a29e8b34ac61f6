package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Cohort API",
        "description": "Program, application, enrollment and assessment management for students, mentors and admins.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Actions", "description": "Single dispatch endpoint for workflow, registry and user actions"},
        {"name": "Profiles", "description": "Caller profile on first sign-in"},
        {"name": "Users", "description": "User administration"},
        {"name": "Assessments", "description": "Assessment content and answer keys"},
        {"name": "Submissions", "description": "Assessment attempts and grading"},
        {"name": "Programs", "description": "Program roster exports"}
    ],
    "paths": {
        "/actions": {
            "get": {
                "tags": ["Actions"],
                "summary": "Dispatch a read-only action",
                "description": "Query parameters other than action are parsed as JSON when possible. Accepted: get_applications, get_my_applications, get_enrollments, get_my_enrollments, get_enrollment, get_programs, get_my_programs, get_program, check_capacity.",
                "parameters": [
                    {"name": "action", "in": "query", "required": true, "type": "string"},
                    {"name": "programId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing, unknown or mutating action", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Actions"],
                "summary": "Dispatch an action",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ActionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid body or unknown action", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden or account not approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate, capacity or state conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profiles/me": {
            "get": {
                "tags": ["Profiles"],
                "summary": "Current caller profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Profile not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Profiles"],
                "summary": "Create the caller profile on first sign-in",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnsureProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "Existing profile", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "parameters": [
                    {"name": "role", "in": "query", "type": "string", "enum": ["student", "mentor", "admin"]},
                    {"name": "approved", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/{id}": {
            "delete": {
                "tags": ["Users"],
                "summary": "Delete a user",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Cannot delete yourself", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/programs/{id}/assessments": {
            "get": {
                "tags": ["Assessments"],
                "summary": "List assessments of a program",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Assessments"],
                "summary": "Create an assessment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssessmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/programs/{id}/roster": {
            "get": {
                "tags": ["Programs"],
                "summary": "Export a program roster",
                "produces": ["text/csv", "application/pdf", "application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "delivery", "in": "query", "type": "string", "enum": ["file", "link"]}
                ],
                "responses": {
                    "200": {"description": "Roster file", "schema": {"type": "file"}},
                    "201": {"description": "Signed download link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/roster-downloads/{token}": {
            "get": {
                "tags": ["Programs"],
                "summary": "Download a stored roster",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Roster file", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assessments/{id}": {
            "get": {
                "tags": ["Assessments"],
                "summary": "Get an assessment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Assessments"],
                "summary": "Replace an assessment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssessmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Assessments"],
                "summary": "Delete an assessment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/assessments/{id}/answers": {
            "get": {
                "tags": ["Assessments"],
                "summary": "Read the answer key",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assessments/{id}/submissions": {
            "get": {
                "tags": ["Submissions"],
                "summary": "List submissions with suggested scores",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit an assessment attempt",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assessments/{id}/submissions/me": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Caller's latest submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}/grade": {
            "put": {
                "tags": ["Submissions"],
                "summary": "Grade a submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ActionRequest": {
            "type": "object",
            "required": ["action"],
            "properties": {
                "action": {"type": "string", "example": "review_application"},
                "applicationId": {"type": "string"},
                "reviewAction": {"type": "string", "enum": ["approve", "reject"]},
                "programId": {"type": "string"},
                "studentId": {"type": "string"},
                "enrollmentId": {"type": "string"},
                "submissionId": {"type": "string"},
                "userId": {"type": "string"},
                "role": {"type": "string", "enum": ["student", "mentor", "admin"]},
                "status": {"type": "string"},
                "score": {"type": "number"},
                "feedback": {"type": "string"},
                "applicationData": {"type": "object"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "startDate": {"type": "string", "format": "date"},
                "endDate": {"type": "string", "format": "date"},
                "maxStudents": {"type": "integer"},
                "mentorIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "EnsureProfileRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string"},
                "full_name": {"type": "string"}
            }
        },
        "Question": {
            "type": "object",
            "required": ["question", "type"],
            "properties": {
                "question": {"type": "string"},
                "type": {"type": "string", "enum": ["multiple_choice", "text", "true_false"]},
                "options": {"type": "array", "items": {"type": "string"}},
                "points": {"type": "number"}
            }
        },
        "AssessmentRequest": {
            "type": "object",
            "required": ["title", "type"],
            "properties": {
                "title": {"type": "string"},
                "instructions": {"type": "string"},
                "type": {"type": "string", "enum": ["quiz", "assignment", "project", "exam"]},
                "due_date": {"type": "string", "format": "date-time"},
                "max_score": {"type": "integer"},
                "questions": {"type": "array", "items": {"$ref": "#/definitions/Question"}},
                "answer_key": {"type": "object", "additionalProperties": {"type": "string"}},
                "grading_notes": {"type": "string"}
            }
        },
        "SubmissionRequest": {
            "type": "object",
            "properties": {
                "submission_data": {"type": "object"},
                "status": {"type": "string", "enum": ["draft", "submitted"]}
            }
        },
        "GradeRequest": {
            "type": "object",
            "required": ["score"],
            "properties": {
                "score": {"type": "number"},
                "feedback": {"type": "string"}
            }
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

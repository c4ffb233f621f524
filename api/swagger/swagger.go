package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Gradebook API",
        "description": "Grade aggregation and academic report engine",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Exams", "description": "Assessment and question bank management"},
        {"name": "Attempts", "description": "Student exam attempt lifecycle"},
        {"name": "Grades", "description": "Question grades and subject grade components"},
        {"name": "Reports", "description": "Term reports, annual reports, rankings and exports"}
    ],
    "paths": {
        "/exams": {
            "post": {
                "tags": ["Exams"],
                "summary": "Create assessment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExamRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Exams"],
                "summary": "List assessments",
                "parameters": [
                    {"name": "programId", "in": "query", "type": "string"},
                    {"name": "term", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/questions": {
            "put": {
                "tags": ["Exams"],
                "summary": "Replace question set",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceQuestionsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/publish": {
            "post": {
                "tags": ["Exams"],
                "summary": "Publish assessment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/payload": {
            "get": {
                "tags": ["Exams"],
                "summary": "Student-facing payload without answer keys",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attempts": {
            "post": {
                "tags": ["Attempts"],
                "summary": "Start attempt",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StartAttemptRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attempts/{id}/submit": {
            "post": {
                "tags": ["Attempts"],
                "summary": "Submit attempt",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitAttemptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attempts/{id}/tab-switch": {
            "post": {
                "tags": ["Attempts"],
                "summary": "Record tab switch",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attempts/{id}/breakdown": {
            "get": {
                "tags": ["Grades"],
                "summary": "Question-level breakdown",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attempts/{id}/auto-grade": {
            "post": {
                "tags": ["Grades"],
                "summary": "Auto-grade scorable questions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attempts/{id}/finalize": {
            "post": {
                "tags": ["Grades"],
                "summary": "Roll graded attempt into subject grade",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Not fully graded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "List subject grades",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "programId", "in": "query", "type": "string"},
                    {"name": "term", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/component": {
            "put": {
                "tags": ["Grades"],
                "summary": "Set CA or exam component score",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetComponentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent update", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/questions": {
            "put": {
                "tags": ["Grades"],
                "summary": "Grade a single question",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertQuestionGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/students/{studentId}/term": {
            "get": {
                "tags": ["Reports"],
                "summary": "Term report card",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "programId", "in": "query", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/students/{studentId}/annual": {
            "get": {
                "tags": ["Reports"],
                "summary": "Annual report",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "programId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/programs/{programId}/students": {
            "get": {
                "tags": ["Reports"],
                "summary": "Enrolled students of a program",
                "parameters": [
                    {"name": "programId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/programs/{programId}/ranking": {
            "get": {
                "tags": ["Reports"],
                "summary": "Class ranking",
                "parameters": [
                    {"name": "programId", "in": "path", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/programs/{programId}/grade-sheet.csv": {
            "get": {
                "tags": ["Reports"],
                "summary": "Class grade sheet export",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "programId", "in": "path", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV content"}
                }
            }
        }
    },
    "definitions": {
        "CreateExamRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "type": {"type": "string", "enum": ["EXAM", "CA"]},
                "subject_id": {"type": "string"},
                "program_id": {"type": "string"},
                "term": {"type": "string"},
                "duration_minutes": {"type": "integer"}
            }
        },
        "ReplaceQuestionsRequest": {
            "type": "object",
            "properties": {
                "questions": {"type": "array", "items": {"type": "object"}}
            }
        },
        "StartAttemptRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "exam_id": {"type": "string"}
            }
        },
        "SubmitAttemptRequest": {
            "type": "object",
            "properties": {
                "answers": {"type": "object"}
            }
        },
        "SetComponentRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "program_id": {"type": "string"},
                "term": {"type": "string"},
                "component": {"type": "string", "enum": ["CA", "EXAM"]},
                "value": {"type": "number"},
                "teacher_comment": {"type": "string"}
            }
        },
        "UpsertQuestionGradeRequest": {
            "type": "object",
            "properties": {
                "attempt_id": {"type": "string"},
                "question_id": {"type": "string"},
                "marks_awarded": {"type": "number"},
                "comment": {"type": "string"}
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

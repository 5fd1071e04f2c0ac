// Package docs holds the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g pkg/api/docs.go -o pkg/api/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "Apache 2.0",
            "url": "https://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/bounties/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Bounties"],
                "summary": "Get bounty",
                "parameters": [
                    {"type": "string", "description": "Bounty id (decimal)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.BountyResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/bounties/{id}/proofs": {
            "post": {
                "description": "Sends the claim to the proof verifier and stores the outcome. Aggregates are not changed.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Bounties"],
                "summary": "Submit proof",
                "parameters": [
                    {"type": "string", "description": "Bounty id (decimal)", "name": "id", "in": "path", "required": true},
                    {"description": "Claim", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.SubmitProofRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.ProofResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Returns 200 while the processor is healthy and 503 once it has failed",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.HealthResponse"}}
                }
            }
        },
        "/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Platform statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StatsResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/stats/daily": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Stats"],
                "summary": "Daily statistics",
                "parameters": [
                    {"type": "string", "description": "First day (YYYY-MM-DD)", "name": "from", "in": "query"},
                    {"type": "string", "description": "Last day (YYYY-MM-DD)", "name": "to", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.DailyStatsResponse"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Current processor state, last committed height, chain head and lag",
                "produces": ["application/json"],
                "tags": ["Status"],
                "summary": "Processor status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StatusResponse"}}
                }
            }
        },
        "/workers/top": {
            "get": {
                "description": "Workers ordered by reputation score, earliest first bounty wins ties",
                "produces": ["application/json"],
                "tags": ["Workers"],
                "summary": "Top workers",
                "parameters": [
                    {"type": "integer", "default": 10, "description": "Maximum number of workers", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.WorkerResponse"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/workers/{address}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Workers"],
                "summary": "Get worker",
                "parameters": [
                    {"type": "string", "description": "Worker address", "name": "address", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.WorkerResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/workers/{address}/payouts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Workers"],
                "summary": "Worker payouts",
                "parameters": [
                    {"type": "string", "description": "Worker address", "name": "address", "in": "path", "required": true},
                    {"type": "integer", "default": 10, "description": "Maximum number of payouts", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.PayoutResponse"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.BountyResponse": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "completed_at": {"type": "string"},
                "completed_by": {"type": "string"},
                "created_at": {"type": "string"},
                "created_block": {"type": "integer"},
                "creator": {"type": "string"},
                "id": {"type": "string"},
                "pr_or_issue_number": {"type": "integer"},
                "repo_name": {"type": "string"},
                "repo_owner": {"type": "string"},
                "reward": {"type": "string"},
                "status": {"type": "string"},
                "tx_hash": {"type": "string"}
            }
        },
        "api.DailyStatsResponse": {
            "type": "object",
            "properties": {
                "average_payment": {"type": "string"},
                "day": {"type": "string"},
                "payment_count": {"type": "integer"},
                "total_payments": {"type": "string"},
                "unique_workers": {"type": "integer"}
            }
        },
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string"},
                "status": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "api.PayoutResponse": {
            "type": "object",
            "properties": {
                "amount": {"type": "string"},
                "block_number": {"type": "integer"},
                "bounty_id": {"type": "string"},
                "id": {"type": "string"},
                "log_index": {"type": "integer"},
                "proof_id": {"type": "string"},
                "timestamp": {"type": "string"},
                "tx_hash": {"type": "string"},
                "worker": {"type": "string"}
            }
        },
        "api.ProofResponse": {
            "type": "object",
            "properties": {
                "bounty_id": {"type": "string"},
                "claim_data": {"type": "object"},
                "claim_url": {"type": "string"},
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "verified": {"type": "boolean"},
                "worker": {"type": "string"}
            }
        },
        "api.StatsResponse": {
            "type": "object",
            "properties": {
                "active_bounties": {"type": "integer"},
                "average_payment": {"type": "string"},
                "cancelled_bounties": {"type": "integer"},
                "completed_bounties": {"type": "integer"},
                "payment_count": {"type": "integer"},
                "total_bounties": {"type": "integer"},
                "total_payments": {"type": "string"},
                "total_workers": {"type": "integer"}
            }
        },
        "api.StatusResponse": {
            "type": "object",
            "properties": {
                "chain_head": {"type": "integer"},
                "deferred_events": {"type": "integer"},
                "lag": {"type": "integer"},
                "last_committed_height": {"type": "integer"},
                "last_error": {"type": "string"},
                "state": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "api.SubmitProofRequest": {
            "type": "object",
            "properties": {
                "claim_url": {"type": "string"},
                "headers": {"type": "array", "items": {"type": "string"}},
                "worker": {"type": "string"}
            }
        },
        "api.WorkerResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "completed_bounties": {"type": "integer"},
                "first_bounty_at": {"type": "string"},
                "last_bounty_at": {"type": "string"},
                "reputation_score": {"type": "number"},
                "success_rate": {"type": "number"},
                "total_earnings": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "BountyIndexor API",
	Description:      "Read-only queries over indexed bounties, payouts and worker reputation",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

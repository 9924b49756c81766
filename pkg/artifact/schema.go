package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The artifact shapes are a frozen wire contract. These embedded schemas
// enforce it on raw payloads: additional top-level fields are rejected,
// required fields are enforced, enums are closed sets.

const blobRefSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["kind", "ref", "sha256"],
  "properties": {
    "kind": {"type": "string", "minLength": 1},
    "ref": {"type": "string", "pattern": "^[a-z][a-z0-9+.-]*://[A-Za-z0-9][A-Za-z0-9._/-]*$"},
    "sha256": {"type": "string", "pattern": "^[0-9a-f]{64}$"}
  }
}`

const policySchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": [
    "profile",
    "blockMergeOnFail",
    "blockReleaseOnFail",
    "blockMergeOnAgentFail",
    "blockReleaseOnAgentFail",
    "requireTraderReview",
    "hardFailOnMissingIndicators",
    "failClosedOnEvidenceUnavailable"
  ],
  "properties": {
    "profile": {"enum": ["FAST", "STANDARD", "EXPERT"]},
    "blockMergeOnFail": {"type": "boolean"},
    "blockReleaseOnFail": {"type": "boolean"},
    "blockMergeOnAgentFail": {"type": "boolean"},
    "blockReleaseOnAgentFail": {"type": "boolean"},
    "requireTraderReview": {"type": "boolean"},
    "hardFailOnMissingIndicators": {"enum": [true]},
    "failClosedOnEvidenceUnavailable": {"enum": [true]},
    "metricDriftTolerancePct": {"type": "number", "exclusiveMinimum": 0}
  }
}`

const checkResultSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["status", "violations"],
  "properties": {
    "status": {"enum": ["pass", "fail"]},
    "violations": {"type": "array", "items": {"type": "string"}}
  }
}`

const runSchemaDocument = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "ganymede://schemas/validation-run.v1",
  "type": "object",
  "additionalProperties": false,
  "required": [
    "schema", "runId", "requestId", "tenantId", "userId", "actorType",
    "actorId", "strategyId", "createdAt", "inputs", "outputs", "checks",
    "blockReasons", "agentReview", "traderReview", "policy", "finalDecision"
  ],
  "properties": {
    "schema": {"enum": ["validation-run.v1"]},
    "runId": {"type": "string", "minLength": 1},
    "requestId": {"type": "string", "minLength": 1},
    "tenantId": {"type": "string", "minLength": 1},
    "userId": {"type": "string", "minLength": 1},
    "actorType": {"enum": ["user", "bot"]},
    "actorId": {"type": "string", "minLength": 1},
    "strategyId": {"type": "string", "minLength": 1},
    "createdAt": {"type": "string"},
    "inputs": {
      "type": "object",
      "additionalProperties": false,
      "required": ["prompt", "requestedIndicators", "datasetIds", "backtestReportRef"],
      "properties": {
        "prompt": {"type": "string"},
        "requestedIndicators": {"type": "array", "items": {"type": "string"}},
        "datasetIds": {"type": "array", "items": {"type": "string"}},
        "backtestReportRef": {"type": "string"}
      }
    },
    "outputs": {
      "type": "object",
      "additionalProperties": false,
      "required": ["strategyCode", "backtestReport", "trades", "executionLogs", "chartPayload"],
      "properties": {
        "strategyCode": BLOBREF,
        "backtestReport": BLOBREF,
        "trades": BLOBREF,
        "executionLogs": BLOBREF,
        "chartPayload": BLOBREF
      }
    },
    "checks": {
      "type": "object",
      "additionalProperties": false,
      "required": ["indicatorFidelity", "tradeCoherence", "metricConsistency", "lineageCompleteness"],
      "properties": {
        "indicatorFidelity": CHECKRESULT,
        "tradeCoherence": CHECKRESULT,
        "lineageCompleteness": CHECKRESULT,
        "metricConsistency": {
          "type": "object",
          "additionalProperties": false,
          "required": ["status", "violations", "maxDriftPct", "tolerancePct"],
          "properties": {
            "status": {"enum": ["pass", "fail"]},
            "violations": {"type": "array", "items": {"type": "string"}},
            "maxDriftPct": {"type": "number"},
            "tolerancePct": {"type": "number"}
          }
        }
      }
    },
    "blockReasons": {"type": "array", "items": {"type": "string"}},
    "agentReview": {
      "type": "object",
      "additionalProperties": false,
      "required": ["status", "summary", "findings", "budget"],
      "properties": {
        "status": {"enum": ["not_executed", "pass", "conditional_pass", "fail"]},
        "summary": {"type": "string"},
        "findings": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": false,
            "required": ["id", "priority", "confidence", "summary", "evidenceRefs"],
            "properties": {
              "id": {"type": "string", "minLength": 1},
              "priority": {"type": "integer", "minimum": 0, "maximum": 3},
              "confidence": {"type": "number", "minimum": 0, "maximum": 1},
              "summary": {"type": "string", "minLength": 1},
              "evidenceRefs": {"type": "array", "minItems": 1, "items": {"type": "string"}}
            }
          }
        },
        "budget": {
          "type": "object",
          "additionalProperties": false,
          "required": ["limits", "usage", "withinBudget"],
          "properties": {
            "limits": {
              "type": "object",
              "additionalProperties": false,
              "required": ["maxRuntimeSeconds", "maxTokens", "maxToolCalls", "maxFindings"],
              "properties": {
                "maxRuntimeSeconds": {"type": "number"},
                "maxTokens": {"type": "integer"},
                "maxToolCalls": {"type": "integer"},
                "maxFindings": {"type": "integer"}
              }
            },
            "usage": {
              "type": "object",
              "additionalProperties": false,
              "required": ["runtimeSeconds", "tokens", "toolCalls"],
              "properties": {
                "runtimeSeconds": {"type": "number"},
                "tokens": {"type": "integer"},
                "toolCalls": {"type": "integer"}
              }
            },
            "withinBudget": {"type": "boolean"},
            "breachReason": {"type": "string", "minLength": 1}
          }
        }
      }
    },
    "traderReview": {
      "type": "object",
      "additionalProperties": false,
      "required": ["required", "status", "comments"],
      "properties": {
        "required": {"type": "boolean"},
        "status": {"enum": ["not_requested", "requested", "approved", "rejected"]},
        "decision": {"enum": ["pass", "conditional_pass", "fail"]},
        "comments": {"type": "array", "items": {"type": "string"}}
      }
    },
    "policy": POLICY,
    "finalDecision": {"enum": ["pending", "pass", "conditional_pass", "fail"]}
  }
}`

const snapshotSchemaDocument = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "ganymede://schemas/validation-llm-snapshot.v1",
  "type": "object",
  "additionalProperties": false,
  "required": ["schema", "runId", "strategyId", "requestedIndicators", "checks", "policy", "evidenceRefs"],
  "properties": {
    "schema": {"enum": ["validation-llm-snapshot.v1"]},
    "runId": {"type": "string", "minLength": 1},
    "strategyId": {"type": "string", "minLength": 1},
    "requestedIndicators": {"type": "array", "items": {"type": "string"}},
    "checks": {
      "type": "object",
      "additionalProperties": false,
      "required": ["indicatorFidelity", "tradeCoherence", "metricConsistency"],
      "properties": {
        "indicatorFidelity": {"enum": ["pass", "fail"]},
        "tradeCoherence": {"enum": ["pass", "fail"]},
        "metricConsistency": {"enum": ["pass", "fail"]}
      }
    },
    "policy": POLICY,
    "evidenceRefs": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["kind", "ref"],
        "properties": {
          "kind": {"type": "string", "minLength": 1},
          "ref": {"type": "string", "pattern": "^[a-z][a-z0-9+.-]*://[A-Za-z0-9][A-Za-z0-9._/-]*$"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	runSchema      *jsonschema.Schema
	snapshotSchema *jsonschema.Schema
	schemaErr      error
)

// expandSchema substitutes the shared fragment placeholders so the embedded
// documents stay readable.
func expandSchema(doc string) string {
	doc = strings.ReplaceAll(doc, "BLOBREF", blobRefSchema)
	doc = strings.ReplaceAll(doc, "CHECKRESULT", checkResultSchema)
	doc = strings.ReplaceAll(doc, "POLICY", policySchema)
	return doc
}

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	for id, doc := range map[string]string{
		"ganymede://schemas/validation-run.v1":          runSchemaDocument,
		"ganymede://schemas/validation-llm-snapshot.v1": snapshotSchemaDocument,
	} {
		if err := compiler.AddResource(id, strings.NewReader(expandSchema(doc))); err != nil {
			schemaErr = fmt.Errorf("add schema resource %s: %w", id, err)
			return
		}
	}
	var err error
	if runSchema, err = compiler.Compile("ganymede://schemas/validation-run.v1"); err != nil {
		schemaErr = fmt.Errorf("compile run schema: %w", err)
		return
	}
	if snapshotSchema, err = compiler.Compile("ganymede://schemas/validation-llm-snapshot.v1"); err != nil {
		schemaErr = fmt.Errorf("compile snapshot schema: %w", err)
	}
}

// validateDocument applies a compiled schema to raw JSON bytes.
func validateDocument(schema *jsonschema.Schema, raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return schema.Validate(payload)
}

// ValidateRunDocument checks a raw payload against the validation-run.v1
// wire contract.
func ValidateRunDocument(raw []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	return validateDocument(runSchema, raw)
}

// ValidateSnapshotDocument checks a raw payload against the
// validation-llm-snapshot.v1 wire contract.
func ValidateSnapshotDocument(raw []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	return validateDocument(snapshotSchema, raw)
}

package config

// jsonSchema validates the JSON projection of a parsed config document
// (§4.3: "fails schema validation" triggers the same fallback-to-defaults
// path as a parse failure). YAML is decoded into a generic document,
// re-marshaled to JSON, and checked against this schema before being
// decoded into a Config — catching malformed documents that happen to
// be syntactically valid YAML but violate the data model (wrong types,
// out-of-range ports, unknown log levels).
const jsonSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "plugins_dir": { "type": "string", "minLength": 1 },
    "log_level": { "type": "string", "enum": ["trace", "debug", "info", "warn", "error"] },
    "server": {
      "type": "object",
      "properties": {
        "host": { "type": "string" },
        "port": { "type": "integer", "minimum": 1, "maximum": 65535 },
        "enabled": { "type": "boolean" },
        "rescan_schedule": { "type": "string" }
      }
    },
    "plugins": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "enabled": { "type": "boolean" },
          "settings": { "type": "object" }
        }
      }
    }
  },
  "required": ["plugins_dir", "log_level"]
}`

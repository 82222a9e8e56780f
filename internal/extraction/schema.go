package extraction

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// replySchemaJSON is the shape the extraction reply must have before any field
// is read. Optional text fields tolerate numbers and null because models emit
// coordinates and codes unquoted.
const replySchemaJSON = `{
  "type": "object",
  "required": ["monitoreos"],
  "properties": {
    "monitoreos": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "cliente":        {"type": ["string", "null"]},
          "tipo_agua":      {"$ref": "#/$defs/text"},
          "tipo_muestreo":  {"$ref": "#/$defs/text"},
          "fecha_muestreo": {"$ref": "#/$defs/text"},
          "coordenadas":    {"$ref": "#/$defs/text"},
          "punto_muestreo": {"$ref": "#/$defs/text"},
          "observaciones":  {"$ref": "#/$defs/text"},
          "parametros": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "required": ["parametro"],
              "anyOf": [
                {"required": ["valor_original"]},
                {"required": ["valor"]}
              ],
              "properties": {
                "parametro":      {"type": "string", "minLength": 1},
                "valor":          {"type": ["number", "string", "null"]},
                "valor_original": {"type": ["string", "number", "null"]},
                "unidad":         {"$ref": "#/$defs/text"},
                "metodo":         {"$ref": "#/$defs/text"},
                "limite":         {"$ref": "#/$defs/text"}
              }
            }
          }
        }
      }
    }
  },
  "$defs": {
    "text": {"type": ["string", "number", "null"]}
  }
}`

var replySchema = jsonschema.MustCompileString("extraction-reply.json", replySchemaJSON)

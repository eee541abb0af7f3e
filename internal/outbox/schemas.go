package outbox

import "example.com/sitetracker/internal/events"

const activityUpsertedSchema = `{
  "type": "object",
  "title": "ActivityUpserted",
  "properties": {
    "activity_id": {"type": "string"},
    "category": {"type": "string"},
    "name": {"type": "string"},
    "provider": {"type": "string"},
    "responsible": {"type": "string"},
    "status": {"type": "string", "enum": ["pending", "in_progress", "completed"]},
    "progress": {"type": "integer"},
    "cost": {"type": "number"},
    "start_date": {"type": "string"},
    "end_date": {"type": "string"},
    "created": {"type": "boolean"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "status", "progress", "cost", "occurred_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "occurred_at"],
  "additionalProperties": false
}`

const workingSetReplacedSchema = `{
  "type": "object",
  "title": "WorkingSetReplaced",
  "properties": {
    "source": {"type": "string"},
    "count": {"type": "integer"},
    "version": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["source", "count", "version", "occurred_at"],
  "additionalProperties": false
}`

const activitiesImportedSchema = `{
  "type": "object",
  "title": "ActivitiesImported",
  "properties": {
    "source": {"type": "string"},
    "name": {"type": "string"},
    "accepted": {"type": "integer"},
    "rejected": {"type": "integer"},
    "total": {"type": "integer"},
    "version": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["source", "accepted", "rejected", "total", "version", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps an event type to its schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityUpserted:   {Schema: activityUpsertedSchema},
	events.TypeActivityDeleted:    {Schema: activityDeletedSchema},
	events.TypeWorkingSetReplaced: {Schema: workingSetReplacedSchema},
	events.TypeActivitiesImported: {Schema: activitiesImportedSchema},
}

package models

import "time"

// DefaultClient is stored when a monitoring event names no client.
const DefaultClient = "No especificado"

// MonitoringEvent is one independent water-sample analysis, the unit persisted to the
// document store. Client is the partition key.
type MonitoringEvent struct {
	ID             string                 `json:"id" firestore:"id"`
	Client         string                 `json:"cliente" firestore:"cliente"`
	WaterType      *string                `json:"tipo_agua" firestore:"tipo_agua"`
	SamplingType   *string                `json:"tipo_muestreo" firestore:"tipo_muestreo"`
	SamplingDate   *string                `json:"fecha_muestreo" firestore:"fecha_muestreo"`
	Coordinates    *string                `json:"coordenadas" firestore:"coordenadas"`
	SamplingPoint  *string                `json:"punto_muestreo" firestore:"punto_muestreo"`
	Parameters     []ParameterMeasurement `json:"parametros" firestore:"parametros"`
	Observations   *string                `json:"observaciones" firestore:"observaciones"`
	SourceDocument string                 `json:"pdf_origen" firestore:"pdf_origen"`
	ProcessedAt    time.Time              `json:"fecha_procesamiento" firestore:"fecha_procesamiento"`
	ParameterCount int                    `json:"num_parametros" firestore:"num_parametros"`
}

// ParameterMeasurement is one analyte result. OriginalValue is the literal source text;
// Value is the number derived from it ("< X" becomes X/2, "> X" becomes X).
type ParameterMeasurement struct {
	Parameter     string   `json:"parametro" firestore:"parametro"`
	Value         *float64 `json:"valor" firestore:"valor"`
	OriginalValue string   `json:"valor_original" firestore:"valor_original"`
	Unit          *string  `json:"unidad" firestore:"unidad"`
	Method        *string  `json:"metodo" firestore:"metodo"`
	Limit         *string  `json:"limite" firestore:"limite"`
}

// MonitoringDraft is a monitoring event as produced by extraction, before the store
// assigns an id and ingestion metadata.
type MonitoringDraft struct {
	Client        string                 `json:"cliente"`
	WaterType     *string                `json:"tipo_agua"`
	SamplingType  *string                `json:"tipo_muestreo"`
	SamplingDate  *string                `json:"fecha_muestreo"`
	Coordinates   *string                `json:"coordenadas"`
	SamplingPoint *string                `json:"punto_muestreo"`
	Parameters    []ParameterMeasurement `json:"parametros"`
	Observations  *string                `json:"observaciones"`
}

// Event stamps a draft into a persistable record.
func (d MonitoringDraft) Event(id, sourceDocument string, processedAt time.Time) MonitoringEvent {
	client := d.Client
	if client == "" {
		client = DefaultClient
	}
	params := d.Parameters
	if params == nil {
		params = []ParameterMeasurement{}
	}
	return MonitoringEvent{
		ID:             id,
		Client:         client,
		WaterType:      d.WaterType,
		SamplingType:   d.SamplingType,
		SamplingDate:   d.SamplingDate,
		Coordinates:    d.Coordinates,
		SamplingPoint:  d.SamplingPoint,
		Parameters:     params,
		Observations:   d.Observations,
		SourceDocument: sourceDocument,
		ProcessedAt:    processedAt,
		ParameterCount: len(params),
	}
}

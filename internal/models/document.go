package models

// IntermediateDocument is the flattened text and tables returned by layout extraction.
// It is built fresh for every analysis and handed straight to structured extraction;
// it is never persisted.
type IntermediateDocument struct {
	Text   string  `json:"texto"`
	Tables []Table `json:"tablas"`
	Pages  int     `json:"-"`
}

// Table is one detected table. Number is 1-based in detection order.
type Table struct {
	Number  int    `json:"numero_tabla"`
	Rows    int    `json:"filas"`
	Columns int    `json:"columnas"`
	Cells   []Cell `json:"celdas"`
}

type Cell struct {
	Row     int    `json:"fila"`
	Column  int    `json:"columna"`
	Content string `json:"contenido"`
}

package types

// DataResponse is the envelope used for errors and admin endpoints
type DataResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type DebugHit struct {
	IndexScore float32 `json:"qdrant_score"`
	ChunkID    int     `json:"chunk_id"`
}

type AskDebug struct {
	FilterTextUsed *string    `json:"filter_text_used"`
	Hits           []DebugHit `json:"hits,omitempty"`
}

type AskResponse struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Sources  []string  `json:"sources"`
	Debug    *AskDebug `json:"debug,omitempty"`
}

type UpsertResponse struct {
	Status        string `json:"status"`
	UpsertedCount int    `json:"upserted_count"`
	Collection    string `json:"collection"`
	Source        string `json:"source"`
}

type DeleteBySourceResponse struct {
	Status          string `json:"status"`
	DeletedEstimate int    `json:"deleted_estimate"`
	Source          string `json:"source"`
}

type StatsResponse struct {
	Collection  string         `json:"collection"`
	TotalPoints int            `json:"total_points"`
	Sources     map[string]int `json:"sources"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	GenerationKey bool   `json:"generation_key"`
	VectorIndex   bool   `json:"vector_index"`
	Embedding     bool   `json:"embedding"`
	Model         string `json:"model"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

type FulfillmentResponse struct {
	FulfillmentText string `json:"fulfillmentText"`
}

type UploadResponse struct {
	OriginalName string `json:"original_name,omitempty"`
	Source       string `json:"source"`
	Pages        int    `json:"pages"`
	Chunks       int    `json:"chunks"`
	Upserted     int    `json:"upserted"`
}

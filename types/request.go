package types

type AskRequest struct {
	Question   string `json:"question"`
	TopK       int    `json:"top_k"`
	FilterText string `json:"filter_text,omitempty"`
	Debug      bool   `json:"debug"`
}

// UpsertRequest takes either ready-made Texts or one long Text to be
// chunked with a fixed window.
type UpsertRequest struct {
	Texts            []string `json:"texts,omitempty"`
	Text             string   `json:"text,omitempty"`
	Source           string   `json:"source"`
	MaxChars         int      `json:"max_chars"`
	Overlap          *int     `json:"overlap,omitempty"`
	DeterministicIDs *bool    `json:"deterministic_ids,omitempty"`
}

type DeleteBySourceRequest struct {
	Source string `json:"source"`
}

// FulfillmentRequest is the subset of a Dialogflow webhook call we read.
// Plain clients may send Text instead.
type FulfillmentRequest struct {
	QueryResult struct {
		QueryText string `json:"queryText"`
	} `json:"queryResult"`
	Text string `json:"text"`
}

type UploadRequest struct {
	Source string `form:"source"`
}

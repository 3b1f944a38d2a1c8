package domain

// Chunk is one bounded segment of ingested source text. ChunkIndex is unique
// and contiguous per (BotID, KnowledgeVersion); a whole version is written in
// bulk by one ingestion run and superseded in bulk by the next.
type Chunk struct {
	BotID            string
	KnowledgeVersion int64
	ChunkIndex       int
	Content          string
	Source           string
	TokenCount       int
	Embedding        []float32
}

// ScoredChunk is a chunk returned from similarity search with its cosine
// similarity against the query.
type ScoredChunk struct {
	ChunkIndex int
	Content    string
	Source     string
	Score      float32
}

// SupersededVersion identifies a stored chunk set that no longer matches its
// bot's active knowledge pointer and can be reclaimed.
type SupersededVersion struct {
	BotID   string
	Version int64
}

// TrainingStatus reports the state of a bot's most recent ingestion run.
type TrainingStatus string

const (
	TrainingStatusIdle       TrainingStatus = "idle"
	TrainingStatusProcessing TrainingStatus = "processing"
	TrainingStatusReady      TrainingStatus = "ready"
	TrainingStatusFailed     TrainingStatus = "failed"
)

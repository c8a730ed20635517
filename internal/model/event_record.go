package model

// EventRecord is one decoded contract log.
type EventRecord struct {
	ChainID     uint64       `json:"chain_id"`
	BlockNumber uint64       `json:"block_number"`
	BlockHash   string       `json:"block_hash"`
	TxHash      string       `json:"tx_hash"`
	LogIndex    uint64       `json:"log_index"`
	Address     string       `json:"address"`
	EventName   string       `json:"event_name"`
	Timestamp   uint64       `json:"timestamp,omitempty"`
	Fields      []EventField `json:"fields"`
	Raw         *RawLogRef   `json:"raw,omitempty"`
}

// EventField is a named decoded event argument in declaration order.
type EventField struct {
	Name    string      `json:"name"`
	Indexed bool        `json:"indexed"`
	Value   interface{} `json:"value"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// Field returns the decoded value of a named argument.
func (r EventRecord) Field(name string) (interface{}, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

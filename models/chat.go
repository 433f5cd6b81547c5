package models

// ChatRequest is a single user prompt forwarded to the Cortex Agent.
type ChatRequest struct {
	Prompt    string
	SessionID string
	RequestID string
}

// ChatResponse is the aggregated result of one Cortex Agent call.
type ChatResponse struct {
	Text        string
	SQL         string
	Suggestions []string
	RequestID   string
}

// HasSQL returns true when the agent produced a SQL statement for the prompt.
func (r *ChatResponse) HasSQL() bool {
	return r.SQL != ""
}

// HasSuggestions returns true when the agent produced follow-up suggestions.
func (r *ChatResponse) HasSuggestions() bool {
	return len(r.Suggestions) > 0
}

// QueryResult holds the rows returned by executing agent-generated SQL.
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

// Empty returns true when the query ran successfully but returned no rows.
func (q *QueryResult) Empty() bool {
	return len(q.Rows) == 0
}

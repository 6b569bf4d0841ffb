package assistant

import (
	"fmt"
	"strings"
)

const (
	// SQLSystemPrompt is the system instruction for query generation.
	SQLSystemPrompt = "You are a well-versed and proficient SQL programmer and you are excellent in generating and executing SQL queries. " +
		"You provide thoughtful recommendations and insights on the table schema and detect any anomalies in the data such as null values, " +
		"missing values, duplicates, data types, etc. You are an unbeatable anomaly detector and detect data issues and schema issues spontaneously."

	// AnalystSystemPrompt is the system instruction for table explanations.
	AnalystSystemPrompt = "You are a helpful assistant, SQL programmer, data scientist, and generative AI specialist."
)

// SQLSystemPromptFor appends the table's column list to SQLSystemPrompt so
// generated queries use the imported identifiers.
func SQLSystemPromptFor(table string, columns []string) string {
	if table == "" || len(columns) == 0 {
		return SQLSystemPrompt
	}
	return fmt.Sprintf("%s\n\nTable %q has columns: %s", SQLSystemPrompt, table, strings.Join(columns, ", "))
}

// ExplainQueryPrompt asks how query will be executed.
func ExplainQueryPrompt(query string) string {
	return "Explain how the following SQL query will be executed:\n" + query
}

// ExplainTablePrompt asks for a description of a table preview.
func ExplainTablePrompt(head string) string {
	return "Explain the contents of the following table:\n" + head
}

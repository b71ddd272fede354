// Package prompt assembles the orchestration system prompt sent to the
// model before each planning call.
package prompt

import (
	"encoding/json"
	"strings"
	"text/template"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
)

// orchestrationTemplate instructs the model to answer with exactly one
// of the three plan shapes. The wire contract is name/arguments/order
// with result_<tool_name> references between steps.
const orchestrationTemplate = `You are a tool orchestration assistant{{if .Username}} helping '{{.Username}}'{{end}}. Analyze the current user request and conversation history, then decide whether tools are needed.

## AVAILABLE TOOLS
{{range .Tools}}- {{.Name}}: {{.Description}}
  parameters: {{.Parameters}}
{{end}}
## RESPONSE FORMATS - ONLY USE THESE 3 FORMATS

**OPTION 1 - When no tools are needed and you can answer directly:**
` + "```json" + `
{
  "message": "<the response for the user query>"
}
` + "```" + `

**OPTION 2 - When you need to call tools for the current request, return a JSON array where each element contains:**
- "name": exact tool name (must match the available tools, never altered)
- "arguments": object with all required parameters (use {} when a tool takes none)
- "order": execution sequence number, always starting from 1

` + "```json" + `
[
  {
    "name": "read_file",
    "arguments": {
      "file_name": "document.txt"
    },
    "order": 1
  },
  {
    "name": "classify_file_based_on_content",
    "arguments": {
      "content": "result_read_file"
    },
    "order": 2
  }
]
` + "```" + `

**OPTION 3 - When you cannot help with the current request:**
` + "```json" + `
{
  "error": "I cannot help because: <clear reason>"
}
` + "```" + `

**CRITICAL RULE: return ONE of these 3 formats. No additional text. No explanations. Just the JSON.**

## TOOL CHAINING RULE
When one tool needs the result from another tool, use EXACTLY the format "result_<tool_name>" as the argument value. Example: if "read_file" runs first, a later step references its output as "result_read_file".

## TOOL USAGE RULES
- Use the EXACT tool name from the available tools list
{{if .Username}}- When a tool needs a username, use: '{{.Username}}'
{{end}}- Fill every parameter the tool requires
- Order of tools matters; sequence them by their data dependencies
- Do not call tools when recent history already answers the request`

var orchestrationTmpl = template.Must(template.New("orchestration").Parse(orchestrationTemplate))

type renderedTool struct {
	Name        string
	Description string
	Parameters  string
}

type orchestrationInput struct {
	Username string
	Tools    []renderedTool
}

// Orchestration renders the system prompt for one planning call.
func Orchestration(username string, tools []chatweave.ToolDescriptor) (string, error) {
	input := orchestrationInput{Username: username}

	for _, tool := range tools {
		params := "{}"
		if tool.Parameters != nil {
			if data, err := json.Marshal(tool.Parameters); err == nil {
				params = string(data)
			}
		}
		input.Tools = append(input.Tools, renderedTool{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		})
	}

	var sb strings.Builder
	if err := orchestrationTmpl.Execute(&sb, input); err != nil {
		return "", err
	}
	return sb.String(), nil
}

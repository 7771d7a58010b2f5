// Package tools wires the builtin tools into a toolbox.
package tools

import (
	"github.com/spf13/afero"

	"chatgate/src/agent"
	"chatgate/src/tools/tool_calculate"
	"chatgate/src/tools/tool_time"
	"chatgate/src/tools/tool_webfetch"
	"chatgate/src/tools/tool_writefile"
)

// Tool name constants re-exported from the individual packages.
const (
	GetCurrentTimeName = tool_time.Name
	CalculateName      = tool_calculate.Name
	WebFetchName       = tool_webfetch.Name
	WriteFileName      = tool_writefile.Name
)

func GetCurrentTimeTool() (agent.Tool, error)       { return tool_time.Tool() }
func CalculateTool() (agent.Tool, error)            { return tool_calculate.Tool() }
func WebFetchTool() (agent.Tool, error)             { return tool_webfetch.Tool() }
func WriteFileTool(fs afero.Fs) (agent.Tool, error) { return tool_writefile.Tool(fs) }

// DefaultToolbox builds a toolbox with every builtin tool registered.
// File-writing tools operate on the supplied filesystem.
func DefaultToolbox(fs afero.Fs) (*agent.Toolbox, error) {
	tb := agent.NewToolbox()
	constructors := []func() (agent.Tool, error){
		GetCurrentTimeTool,
		CalculateTool,
		WebFetchTool,
		func() (agent.Tool, error) { return WriteFileTool(fs) },
	}
	for _, construct := range constructors {
		tool, err := construct()
		if err != nil {
			return nil, err
		}
		if err := tb.RegisterTool(tool); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

// internal/acquire/tools.go
package acquire

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"board-service/internal/config"
)

// RunFunc executes a located tool and returns its combined output.
// Overridable in tests.
type RunFunc func(ctx context.Context, path string, args ...string) ([]byte, error)

// toolSpec describes one external programmer binary and how to ask it for
// the UID words.
type toolSpec struct {
	name     string
	override string
	globs    []string
	args     func(port string, address uint32) []string
}

// ToolProbe shells out to locally installed vendor programmers as the last
// resort, for boards that expose only a debug probe rather than a generic
// UART. Absence of a tool is a normal negative result, never an error.
type ToolProbe struct {
	Run     RunFunc
	Timeout time.Duration
	tools   []toolSpec
	logger  *zap.Logger
}

// NewToolProbe builds the external-tool strategy from configuration.
func NewToolProbe(cfg *config.AcquireConfig, logger *zap.Logger) *ToolProbe {
	return &ToolProbe{
		Run:     RunCommand,
		Timeout: cfg.ToolTimeout,
		tools:   toolChain(&cfg.ToolPaths),
		logger:  logger.With(zap.String("strategy", "programmer-tools")),
	}
}

func (t *ToolProbe) Name() string { return "programmer-tools" }

// Attempt tries each tool in order: vendor programmer CLI, then the JTAG/SWD
// utility, then the hardware-debugger commander. A tool that is missing,
// times out, or produces unparsable output is skipped.
func (t *ToolProbe) Attempt(ctx context.Context, target Target) (string, error) {
	address := ParamsFor(target.Kind).Address

	for _, tool := range t.tools {
		path := locate(tool)
		if path == "" {
			continue
		}

		toolCtx, cancel := context.WithTimeout(ctx, t.Timeout)
		output, err := t.Run(toolCtx, path, tool.args(target.Port, address)...)
		cancel()
		if err != nil {
			t.logger.Debug("Programmer tool failed",
				zap.String("tool", tool.name),
				zap.Error(err),
			)
			continue
		}

		if uid := parseMemoryWords(string(output), address); uid != "" {
			return uid, nil
		}
		t.logger.Debug("Programmer tool output had no UID words",
			zap.String("tool", tool.name),
		)
	}
	return "", fmt.Errorf("no programmer tool yielded a UID")
}

// toolChain builds the ordered tool list with configured overrides.
func toolChain(paths *config.ToolPaths) []toolSpec {
	return []toolSpec{
		{
			name:     programmerCLIName(),
			override: paths.ProgrammerCLI,
			globs: []string{
				"/opt/st/stm32cubeprog*/bin/STM32_Programmer_CLI",
				"/usr/local/STMicroelectronics/STM32Cube/STM32CubeProgrammer/bin/STM32_Programmer_CLI",
				`C:\Program Files\STMicroelectronics\STM32Cube\STM32CubeProgrammer\bin\STM32_Programmer_CLI.exe`,
				`C:\Program Files (x86)\STMicroelectronics\STM32Cube\STM32CubeProgrammer\bin\STM32_Programmer_CLI.exe`,
			},
			args: func(port string, address uint32) []string {
				return []string{
					"-c", "port=SWD", "mode=UR",
					"-r32", fmt.Sprintf("0x%08X", address), "12",
				}
			},
		},
		{
			name:     "openocd",
			override: paths.OpenOCD,
			globs: []string{
				"/usr/local/bin/openocd",
				"/opt/openocd*/bin/openocd",
				`C:\openocd*\bin\openocd.exe`,
			},
			args: func(port string, address uint32) []string {
				return []string{
					"-f", "interface/stlink.cfg",
					"-f", "target/stm32f1x.cfg",
					"-c", "init",
					"-c", fmt.Sprintf("mdw 0x%08X 3", address),
					"-c", "shutdown",
				}
			},
		},
		{
			name:     jlinkName(),
			override: paths.JLink,
			globs: []string{
				"/opt/SEGGER/JLink*/JLinkExe",
				"/Applications/SEGGER/JLink*/JLinkExe",
				`C:\Program Files\SEGGER\JLink*\JLink.exe`,
				`C:\Program Files (x86)\SEGGER\JLink*\JLink.exe`,
			},
			args: func(port string, address uint32) []string {
				return []string{
					"-device", "STM32F103C8", "-if", "SWD", "-speed", "4000",
					"-autoconnect", "1",
					"-CommandFile", jlinkScript(address),
				}
			},
		},
	}
}

// LocateTool resolves an external binary the same way the programmer chain
// does: explicit override first, then install-path globbing, then PATH
// lookup. Shared with the flashing layer.
func LocateTool(override string, globs []string, name string) string {
	return locate(toolSpec{name: name, override: override, globs: globs})
}

// locate resolves a tool path: explicit override first, then install-path
// globbing, then PATH lookup. Empty string means not installed.
func locate(tool toolSpec) string {
	if tool.override != "" {
		if _, err := os.Stat(tool.override); err == nil {
			return tool.override
		}
		return ""
	}

	for _, pattern := range tool.globs {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		return matches[len(matches)-1] // highest-sorting match, usually newest
	}

	if path, err := exec.LookPath(tool.name); err == nil {
		return path
	}
	return ""
}

// jlinkScript writes a one-shot commander script reading the three UID words
// and returns its path. The commander has no single-shot read flag, only
// script files.
func jlinkScript(address uint32) string {
	script := fmt.Sprintf("connect\nmem32 0x%08X, 3\nexit\n", address)
	f, err := os.CreateTemp("", "uid-read-*.jlink")
	if err != nil {
		return ""
	}
	defer f.Close()
	if _, err := f.WriteString(script); err != nil {
		return ""
	}
	return f.Name()
}

// wordPattern matches one 32-bit memory word as the tools print it.
var wordPattern = regexp.MustCompile(`(?i)\b[0-9A-F]{8}\b`)

// parseMemoryWords scrapes tool output for the three 32-bit words at the UID
// address and concatenates them into the 96-bit identifier. The address
// token itself is excluded wherever the tool echoes it.
func parseMemoryWords(output string, address uint32) string {
	addrToken := strings.ToUpper(fmt.Sprintf("%08X", address))

	var words []string
	for _, line := range strings.Split(output, "\n") {
		upper := strings.ToUpper(line)
		// Only lines mentioning the read address carry payload; banners and
		// progress lines are full of 8-digit version strings.
		if !strings.Contains(upper, addrToken) {
			continue
		}
		for _, m := range wordPattern.FindAllString(upper, -1) {
			if m == addrToken {
				continue
			}
			words = append(words, m)
			if len(words) == 3 {
				return NormalizeUID(strings.Join(words, ""))
			}
		}
	}
	return ""
}

func programmerCLIName() string {
	if runtime.GOOS == "windows" {
		return "STM32_Programmer_CLI.exe"
	}
	return "STM32_Programmer_CLI"
}

func jlinkName() string {
	if runtime.GOOS == "windows" {
		return "JLink.exe"
	}
	return "JLinkExe"
}

// RunCommand is the production RunFunc.
func RunCommand(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).CombinedOutput()
}

// internal/flash/flash.go

// Package flash writes firmware images to identified boards through locally
// installed programmer tools. It shares the acquisition layer's tool
// location rules so a bench that can read a UID can also flash.
package flash

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"board-service/internal/acquire"
	"board-service/internal/config"
	"board-service/internal/model"
)

// defaultFlashBase is where STM32 application images load from.
const defaultFlashBase = 0x08000000

// Flasher writes an image to the board behind a device record.
type Flasher interface {
	Flash(ctx context.Context, dev *model.Device, imagePath string) error
}

// flashTool is one CLI capable of programming a board.
type flashTool struct {
	name     string
	override string
	globs    []string
	args     func(port, imagePath string) []string
}

// CLIFlasher shells out to the first available programmer: vendor CLI,
// then dfu-util, then OpenOCD, matching the tool preference used for UID
// reads.
type CLIFlasher struct {
	Run     acquire.RunFunc
	Timeout time.Duration
	tools   []flashTool
	logger  *zap.Logger
}

// New builds a CLI-backed flasher from configuration.
func New(cfg *config.AcquireConfig, logger *zap.Logger) *CLIFlasher {
	return &CLIFlasher{
		Run:     acquire.RunCommand,
		Timeout: cfg.ToolTimeout,
		tools:   flashChain(&cfg.ToolPaths),
		logger:  logger.With(zap.String("component", "flasher")),
	}
}

// Flash programs the image onto the device using the first tool that is both
// installed and succeeds. Unlike UID acquisition, running out of tools is an
// error the caller must see: a flash that silently did nothing is worse than
// a failed one.
func (f *CLIFlasher) Flash(ctx context.Context, dev *model.Device, imagePath string) error {
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("firmware image %s: %w", imagePath, err)
	}

	var lastErr error
	for _, tool := range f.tools {
		path := acquire.LocateTool(tool.override, tool.globs, tool.name)
		if path == "" {
			continue
		}

		f.logger.Info("Flashing device",
			zap.String("tool", tool.name),
			zap.String("port", dev.Port),
			zap.String("image", imagePath),
		)

		toolCtx, cancel := context.WithTimeout(ctx, f.Timeout)
		output, err := f.Run(toolCtx, path, tool.args(dev.Port, imagePath)...)
		cancel()
		if err == nil {
			f.logger.Info("Flash complete",
				zap.String("tool", tool.name),
				zap.String("unique_id", dev.UniqueID()),
			)
			return nil
		}

		lastErr = fmt.Errorf("%s: %w (output: %.200s)", tool.name, err, string(output))
		f.logger.Warn("Flash tool failed, trying next",
			zap.String("tool", tool.name),
			zap.Error(err),
		)
	}

	if lastErr != nil {
		return fmt.Errorf("flash failed: %w", lastErr)
	}
	return fmt.Errorf("no programmer tool installed")
}

func flashChain(paths *config.ToolPaths) []flashTool {
	return []flashTool{
		{
			name:     programmerCLIName(),
			override: paths.ProgrammerCLI,
			globs: []string{
				"/opt/st/stm32cubeprog*/bin/STM32_Programmer_CLI",
				"/usr/local/STMicroelectronics/STM32Cube/STM32CubeProgrammer/bin/STM32_Programmer_CLI",
				`C:\Program Files\STMicroelectronics\STM32Cube\STM32CubeProgrammer\bin\STM32_Programmer_CLI.exe`,
				`C:\Program Files (x86)\STMicroelectronics\STM32Cube\STM32CubeProgrammer\bin\STM32_Programmer_CLI.exe`,
			},
			args: func(port, imagePath string) []string {
				return []string{
					"-c", "port=SWD", "mode=UR",
					"-w", imagePath, fmt.Sprintf("0x%08X", uint32(defaultFlashBase)),
					"-v", "-rst",
				}
			},
		},
		{
			name:     "dfu-util",
			override: paths.DfuUtil,
			globs: []string{
				"/usr/local/bin/dfu-util",
				`C:\dfu-util*\dfu-util.exe`,
			},
			args: func(port, imagePath string) []string {
				return []string{
					"-a", "0",
					"-s", fmt.Sprintf("0x%08X:leave", uint32(defaultFlashBase)),
					"-D", imagePath,
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
			args: func(port, imagePath string) []string {
				return []string{
					"-f", "interface/stlink.cfg",
					"-f", "target/stm32f1x.cfg",
					"-c", fmt.Sprintf("program %s 0x%08X verify reset exit", imagePath, uint32(defaultFlashBase)),
				}
			},
		},
	}
}

func programmerCLIName() string {
	if runtime.GOOS == "windows" {
		return "STM32_Programmer_CLI.exe"
	}
	return "STM32_Programmer_CLI"
}

// internal/classify/classify.go

// Package classify maps USB vendor/product identifier pairs to board kinds.
package classify

import "board-service/internal/model"

type vidpid struct {
	vid uint16
	pid uint16
}

// knownBoards is the static lookup table of identifier pairs observed on
// supported boards.
var knownBoards = map[vidpid]model.BoardKind{
	// STM32
	{0x0483, 0x5740}: model.BoardStm32, // ST Virtual COM Port
	{0x0483, 0x3748}: model.BoardStm32, // DFU mode
	{0x0483, 0x374B}: model.BoardStm32, // ST-LINK/V2-1
	{0x0483, 0x3752}: model.BoardStm32, // ST-LINK/V3

	// ESP32
	{0x10C4, 0xEA60}: model.BoardEsp32, // CP210x UART bridge
	{0x303A, 0x0001}: model.BoardEsp32, // ESP32-DevKitC
	{0x303A, 0x1001}: model.BoardEsp32, // ESP32-WROOM-DA

	// ESP8266
	{0x1A86, 0x7523}: model.BoardEsp8266, // CH340 (NodeMCU)

	// Arduino
	{0x2341, 0x0043}: model.BoardArduino, // Uno
	{0x2341, 0x0010}: model.BoardArduino, // Mega
	{0x2A03, 0x0043}: model.BoardArduino, // Uno clone
}

// Classify returns the board kind for a vendor/product identifier pair.
// Missing or unmatched identifiers classify as Unknown. Pure lookup: no
// state, no I/O.
func Classify(vendorID, productID *model.USBID) model.BoardKind {
	if vendorID == nil || productID == nil {
		return model.BoardUnknown
	}
	if kind, ok := knownBoards[vidpid{uint16(*vendorID), uint16(*productID)}]; ok {
		return kind
	}
	return model.BoardUnknown
}

// KnownPairs returns the table contents, for diagnostics and tests.
func KnownPairs() map[[2]uint16]model.BoardKind {
	out := make(map[[2]uint16]model.BoardKind, len(knownBoards))
	for k, v := range knownBoards {
		out[[2]uint16{k.vid, k.pid}] = v
	}
	return out
}

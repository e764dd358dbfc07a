package parser

import "testing"

func TestBuildZoomCommandChecksum(t *testing.T) {
	frame := BuildZoomCommand(0x01, true)
	if len(frame) != 7 {
		t.Fatalf("expected a 7-byte frame, got %d bytes", len(frame))
	}
	if frame[0] != 0xFF || frame[1] != 0x01 {
		t.Fatalf("unexpected sync/address bytes: %v", frame)
	}
	if frame[3] != pelcoCmdZoomTele {
		t.Fatalf("expected tele command byte 0x%02x, got 0x%02x", pelcoCmdZoomTele, frame[3])
	}
	if frame[6] != pelcoChecksum(frame) {
		t.Fatalf("checksum mismatch: frame=%v", frame)
	}

	wide := BuildZoomCommand(0x01, false)
	if wide[3] != pelcoCmdZoomWide {
		t.Fatalf("expected wide command byte 0x%02x, got 0x%02x", pelcoCmdZoomWide, wide[3])
	}
}

func TestBuildFocusCommandChecksum(t *testing.T) {
	near := BuildFocusCommand(0x02, true)
	if near[3] != pelcoCmdFocusNear {
		t.Fatalf("expected near command byte 0x%02x, got 0x%02x", pelcoCmdFocusNear, near[3])
	}
	if near[6] != pelcoChecksum(near) {
		t.Fatalf("checksum mismatch: frame=%v", near)
	}

	far := BuildFocusCommand(0x02, false)
	if far[3] != pelcoCmdFocusFar {
		t.Fatalf("expected far command byte 0x%02x, got 0x%02x", pelcoCmdFocusFar, far[3])
	}
}

func TestBuildStopCommandIsAllZeroPayload(t *testing.T) {
	frame := BuildStopCommand(0x03)
	if frame[3] != 0x00 || frame[4] != 0x00 || frame[5] != 0x00 {
		t.Fatalf("expected an all-zero command payload, got %v", frame)
	}
	if frame[6] != pelcoChecksum(frame) {
		t.Fatalf("checksum mismatch: frame=%v", frame)
	}
}

func TestDayCameraParserFeedDecodesZoomReply(t *testing.T) {
	var p DayCameraParser
	addr := byte(0x01)
	frame := []byte{0xFF, addr, 0x00, pelcoZoomQueryCode, 0x20, 0x00, 0x00}
	frame[6] = pelcoChecksum(frame)

	msgs := p.Feed(frame)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 decoded message, got %d", len(msgs))
	}
	if msgs[0].Kind != DayCameraZoomPosition {
		t.Fatalf("expected DayCameraZoomPosition, got %v", msgs[0].Kind)
	}
	if msgs[0].ZoomRaw != 0x2000 {
		t.Fatalf("expected zoom raw 0x2000, got 0x%04x", msgs[0].ZoomRaw)
	}
}

func TestDayCameraParserResyncsOnBadChecksum(t *testing.T) {
	var p DayCameraParser
	addr := byte(0x01)
	good := []byte{0xFF, addr, 0x00, pelcoFocusQueryCode, 0x00, 0x10, 0x00}
	good[6] = pelcoChecksum(good)

	// A frame with an intentionally wrong checksum byte and no embedded
	// 0xFF sync bytes among its payload, so the parser must drop it byte
	// by byte before resynchronising on the well-formed frame that follows.
	badChecksum := []byte{0xFF, 0x05, 0x00, 0x99, 0x12, 0x34, 0x00}
	corrupted := append(append([]byte{}, badChecksum...), good...)

	msgs := p.Feed(corrupted)
	if len(msgs) != 1 {
		t.Fatalf("expected parser to resync past the corrupted leading frame, got %d messages", len(msgs))
	}
	if msgs[0].Kind != DayCameraFocusPosition {
		t.Fatalf("expected DayCameraFocusPosition after resync, got %v", msgs[0].Kind)
	}
}

package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"tacsim.ai/internal/sim/mission"
)

const Version = 1

// Header is written as a plain JSON line ahead of the gob body so tooling
// can identify a snapshot without decoding it.
type Header struct {
	Version   int    `json:"version"`
	MissionID string `json:"mission_id"`
	Tick      uint64 `json:"tick"`
}

func Write(path string, st mission.SnapshotState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(Header{Version: Version, MissionID: st.MissionID, Tick: st.Tick})
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&st); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (mission.SnapshotState, error) {
	var st mission.SnapshotState
	f, err := os.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return st, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body carries everything.
	if _, err := br.ReadBytes('\n'); err != nil {
		return st, err
	}

	if err := gob.NewDecoder(br).Decode(&st); err != nil {
		return st, fmt.Errorf("gob decode: %w", err)
	}
	return st, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReaderSize(dec, 64*1024).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/stellardominion/engine/internal/core/simerr"
)

const (
	fileExt    = ".sav"
	fileMagic  = "SDSV"
	headerSize = len(fileMagic) + blake2b.Size256
)

// FileStore keeps one file per slot: a magic tag, the BLAKE2b-256 checksum
// of the payload, then the lz4-compressed JSON snapshot.
type FileStore struct {
	dir string
	log *zap.Logger
}

func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w: %w", simerr.ErrIO, err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) path(slot string) string {
	return filepath.Join(s.dir, slot+fileExt)
}

func (s *FileStore) Save(_ context.Context, d *SaveData) error {
	if err := ValidateSlot(d.Slot); err != nil {
		return err
	}
	payload, err := encodeFile(d)
	if err != nil {
		return err
	}
	// Write to a temp file and rename so a crash never leaves a torn save.
	tmp, err := os.CreateTemp(s.dir, d.Slot+".*.tmp")
	if err != nil {
		return fmt.Errorf("save %q: %w: %w", d.Slot, simerr.ErrIO, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("save %q: %w: %w", d.Slot, simerr.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %q: %w: %w", d.Slot, simerr.ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), s.path(d.Slot)); err != nil {
		return fmt.Errorf("save %q: %w: %w", d.Slot, simerr.ErrIO, err)
	}
	s.log.Debug("快照寫入", zap.String("slot", d.Slot), zap.Int("bytes", len(payload)))
	return nil
}

func (s *FileStore) Load(_ context.Context, slot string) (*SaveData, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("save %q: %w", slot, simerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w: %w", slot, simerr.ErrIO, err)
	}
	return decodeFile(raw)
}

func (s *FileStore) List(ctx context.Context) ([]SlotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w: %w", simerr.ErrIO, err)
	}
	var out []SlotInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		d, err := s.Load(ctx, strings.TrimSuffix(name, fileExt))
		if err != nil {
			s.log.Warn("略過損壞的存檔", zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, SlotInfo{Slot: d.Slot, SaveID: d.SaveID.String(), Tick: d.Tick, SavedAt: d.SavedAt})
	}
	sortByRecency(out)
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	err := os.Remove(s.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("save %q: %w", slot, simerr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete %q: %w: %w", slot, simerr.ErrIO, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func encodeFile(d *SaveData) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w: %w", d.Slot, simerr.ErrSerialization, err)
	}
	var body bytes.Buffer
	zw := lz4.NewWriter(&body)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress %q: %w: %w", d.Slot, simerr.ErrSerialization, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress %q: %w: %w", d.Slot, simerr.ErrSerialization, err)
	}
	sum := blake2b.Sum256(body.Bytes())
	out := make([]byte, 0, headerSize+body.Len())
	out = append(out, fileMagic...)
	out = append(out, sum[:]...)
	return append(out, body.Bytes()...), nil
}

func decodeFile(raw []byte) (*SaveData, error) {
	if len(raw) < headerSize || string(raw[:len(fileMagic)]) != fileMagic {
		return nil, fmt.Errorf("not a save file: %w", simerr.ErrSerialization)
	}
	body := raw[headerSize:]
	if sum := blake2b.Sum256(body); !bytes.Equal(sum[:], raw[len(fileMagic):headerSize]) {
		return nil, fmt.Errorf("save checksum mismatch: %w", simerr.ErrSerialization)
	}
	plain, err := io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("decompress save: %w: %w", simerr.ErrSerialization, err)
	}
	var d SaveData
	if err := json.Unmarshal(plain, &d); err != nil {
		return nil, fmt.Errorf("decode save: %w: %w", simerr.ErrSerialization, err)
	}
	return &d, nil
}

func sortByRecency(list []SlotInfo) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].SavedAt.Equal(list[j].SavedAt) {
			return list[i].SavedAt.After(list[j].SavedAt)
		}
		return list[i].Slot < list[j].Slot
	})
}

package blocks

import (
	"fmt"

	"github.com/janelia-flyem/lsms/labels"
	"github.com/janelia-flyem/lsms/lsms"
)

// PutLUT stores a label table under name.
func (s *Store) PutLUT(name string, lut *labels.LUT) error {
	if err := checkName(name); err != nil {
		return err
	}
	buf, err := lut.MarshalMsg(nil)
	if err != nil {
		return err
	}
	stored, err := lsms.SerializeData(buf, s.compression, lsms.CRC32)
	if err != nil {
		return err
	}
	return s.kv.Put(nameKey(keyLUT, name), stored)
}

// GetLUT returns the label table stored under name.
func (s *Store) GetLUT(name string) (*labels.LUT, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	stored, err := s.kv.Get(nameKey(keyLUT, name))
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("no LUT %q in %s", name, s.kv)
	}
	buf, _, err := lsms.DeserializeData(stored, true)
	if err != nil {
		return nil, fmt.Errorf("LUT %q: %v", name, err)
	}
	lut := new(labels.LUT)
	if _, err := lut.UnmarshalMsg(buf); err != nil {
		return nil, fmt.Errorf("LUT %q: %v", name, err)
	}
	return lut, nil
}

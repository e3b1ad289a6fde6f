package tif

import "github.com/pkg/errors"

func groupOffset(i int) int { return offGroups + i*groupRecordSize }

const maxGroupRecords = (groupsEnd - offGroups) / groupRecordSize

// GetGroup reads group record i (0 = disc title, 1..N = user groups).
func (s *Store) GetGroup(i int) (GroupRecord, error) {
	if i < 0 || i >= maxGroupRecords {
		return GroupRecord{}, errors.Errorf("tif: group %d out of range", i)
	}
	off := groupOffset(i)
	return unmarshalGroup(s.img[off : off+groupRecordSize]), nil
}

// WriteGroup overwrites group record i.
func (s *Store) WriteGroup(i int, g GroupRecord) error {
	if i < 0 || i >= maxGroupRecords {
		return errors.Errorf("tif: group %d out of range", i)
	}
	off := groupOffset(i)
	marshalGroup(g, s.img[off:off+groupRecordSize])
	s.markDirty()
	return nil
}

// DiscTitleGroup returns group record 0. Unlike user groups it has no
// terminator role: its Flag merely says whether a disc title is currently
// set, per spec.md §3.3.
func (s *Store) DiscTitleGroup() (GroupRecord, error) {
	return s.GetGroup(0)
}

// UserGroups returns group records 1..N, stopping at the first
// empty/terminator record.
func (s *Store) UserGroups() ([]GroupRecord, error) {
	var out []GroupRecord
	for i := 1; i < maxGroupRecords; i++ {
		g, err := s.GetGroup(i)
		if err != nil {
			return nil, err
		}
		if g.IsEmpty() {
			break
		}
		out = append(out, g)
	}
	return out, nil
}

// GetGroupCount returns the number of user groups (spec.md §3.3's disc
// title group at index 0 is not counted).
func (s *Store) GetGroupCount() int {
	groups, err := s.UserGroups()
	if err != nil {
		return 0
	}
	return len(groups)
}

// AllGroups returns every populated group record, disc title first.
func (s *Store) AllGroups() ([]GroupRecord, error) {
	title, err := s.DiscTitleGroup()
	if err != nil {
		return nil, err
	}
	user, err := s.UserGroups()
	if err != nil {
		return nil, err
	}
	return append([]GroupRecord{title}, user...), nil
}

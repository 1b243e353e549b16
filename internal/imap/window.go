package imap

// SelectWindow keeps the most recent limit identifiers of an ascending list.
// A limit of zero or less, or larger than the list, keeps everything.
func SelectWindow(ids []uint32, limit int) []uint32 {
	if limit <= 0 || limit >= len(ids) {
		return ids
	}
	return ids[len(ids)-limit:]
}

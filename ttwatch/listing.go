package ttwatch

// Listing walks the files of a watch, one find request per step. It
// cannot be restarted; call Files again for a fresh listing.
//
//	l := conn.Files()
//	for l.Next() {
//		fmt.Println(l.Entry())
//	}
//	if err := l.Err(); err != nil {
//		...
//	}
type Listing struct {
	c       *Conn
	started bool
	done    bool
	cur     FileEntry
	err     error
}

// Files returns a listing. No request is sent before the first Next.
func (c *Conn) Files() *Listing {
	return &Listing{c: c}
}

// Next advances to the next entry. It returns false at the end of
// the listing or on error, and keeps returning false after that.
func (l *Listing) Next() bool {
	if l.done {
		return false
	}

	l.c.mu.Lock()
	var e FileEntry
	var ok bool
	var err error
	if !l.started {
		l.started = true
		e, ok, err = l.c.findFirstFile()
	} else {
		e, ok, err = l.c.findNextFile()
	}
	l.c.mu.Unlock()

	if err != nil || !ok {
		l.err = err
		l.done = true
		return false
	}
	l.cur = e
	return true
}

func (l *Listing) Entry() FileEntry {
	return l.cur
}

func (l *Listing) Err() error {
	return l.err
}

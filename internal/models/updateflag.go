package models

// Flag is the decoded per-row update flag. On disk it is a single integer,
// hundreds*100 + ones: the ones digit marks a pending edit, the hundreds
// digit counts successful reconciliations. Historical sheets advance the
// integer by 99 on each apply, which equals clearing the ones digit and
// incrementing the hundreds digit in one step; the encoding is kept for
// compatibility with existing record tables.
type Flag struct {
	Applied int
	Pending bool
}

// ParseFlag decodes the stored integer form.
func ParseFlag(v int) Flag {
	return Flag{
		Applied: v / 100,
		Pending: v%10 == 1,
	}
}

// Encode returns the integer form stored in the updateFlag column.
func (f Flag) Encode() int {
	n := f.Applied * 100
	if f.Pending {
		n++
	}
	return n
}

// Apply records one successful reconciliation: the pending edit is cleared
// and the applied counter advances. For a pending flag this encodes as the
// historical +99 step.
func (f Flag) Apply() Flag {
	return Flag{Applied: f.Applied + 1, Pending: false}
}

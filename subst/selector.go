package subst

// MemberSelector chooses the access sites a substitution applies to.
type MemberSelector struct {
	fields  bool
	names   Matcher
	owners  Matcher
	reads   bool
	writes  bool
	invokes bool
}

// Field selects reads and writes of fields whose names match m.
func Field(m Matcher) *MemberSelector {
	return &MemberSelector{fields: true, names: m, owners: Any(), reads: true, writes: true}
}

// Method selects invocations of methods whose selectors match m.
func Method(m Matcher) *MemberSelector {
	return &MemberSelector{names: m, owners: Any(), invokes: true}
}

// OnRead restricts a field selector to reads.
func (s *MemberSelector) OnRead() *MemberSelector {
	c := *s
	c.writes = false
	return &c
}

// OnWrite restricts a field selector to writes.
func (s *MemberSelector) OnWrite() *MemberSelector {
	c := *s
	c.reads = false
	return &c
}

// DeclaredBy restricts the selector to members declared by classes whose
// names match m.
func (s *MemberSelector) DeclaredBy(m Matcher) *MemberSelector {
	c := *s
	c.owners = m
	return &c
}

// Matches reports whether the selector chooses site.
func (s *MemberSelector) Matches(site *AccessSite) bool {
	switch site.Kind {
	case Read:
		if !s.fields || !s.reads {
			return false
		}
	case Write:
		if !s.fields || !s.writes {
			return false
		}
	case Invoke:
		if s.fields || !s.invokes {
			return false
		}
	}
	return s.names.Matches(site.Member()) && s.owners.Matches(site.Declaring.Name)
}

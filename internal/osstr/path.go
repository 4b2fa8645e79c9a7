package osstr

// ToHostPath rewrites a path read from guest memory into host form: every
// target separator becomes the host separator. This is a byte-for-byte
// substitution; nothing is collapsed or resolved.
func ToHostPath(p OsString, targetSep byte) OsString {
	return remap(p, targetSep, p.model().Separator())
}

// ToTargetPath rewrites a host path into guest form: every host separator
// becomes the target separator.
func ToTargetPath(p OsString, targetSep byte) OsString {
	return remap(p, p.model().Separator(), targetSep)
}

func remap(p OsString, from, to byte) OsString {
	if from == to {
		return p
	}
	if p.IsWide() {
		units := clone(p.units)
		for i, u := range units {
			if u == uint16(from) {
				units[i] = uint16(to)
			}
		}
		return OsString{host: p.host, units: units}
	}
	bytes := clone(p.bytes)
	for i, b := range bytes {
		if b == from {
			bytes[i] = to
		}
	}
	return OsString{host: p.host, bytes: bytes}
}

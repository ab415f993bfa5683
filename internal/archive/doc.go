// Package archive streams entries out of repository sync archives.
//
// A sync archive is a gzip-compressed tar whose members are laid out as
// "<name>-<version>/desc" and "<name>-<version>/files". The Reader
// yields one Entry per regular-file member, in archive order, without
// materializing the archive:
//
//	r, err := archive.Open("/var/lib/pacman/sync/core.files")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    entry, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    if entry.Kind != archive.KindDesc {
//	        continue
//	    }
//	    // entry is an io.Reader over the member body
//	}
//
// Failures split into two categories: ErrOpen for a missing file or an
// invalid gzip header, ErrCorrupt for anything that breaks mid-stream.
// Callers treat both as fatal for the archive at hand but not for other
// archives.
package archive

package derived

// File-like operations. Each one materializes a configured object first and
// fails with the materialization error if that does not succeed.

// Read implements io.Reader.
func (o *Object) Read(p []byte) (int, error) {
	if err := o.ensureReady(); err != nil {
		return 0, err
	}
	return o.wrapped.Read(p)
}

// Seek implements io.Seeker.
func (o *Object) Seek(offset int64, whence int) (int64, error) {
	if err := o.ensureReady(); err != nil {
		return 0, err
	}
	return o.wrapped.Seek(offset, whence)
}

// Tell returns the current read offset.
func (o *Object) Tell() (int64, error) {
	if err := o.ensureReady(); err != nil {
		return 0, err
	}
	return o.wrapped.Tell(), nil
}

// Size returns the content length in bytes.
func (o *Object) Size() (int64, error) {
	if err := o.ensureReady(); err != nil {
		return 0, err
	}
	return o.wrapped.Size(), nil
}

// EOF reports whether the read offset reached the end of the content.
func (o *Object) EOF() (bool, error) {
	if err := o.ensureReady(); err != nil {
		return false, err
	}
	return o.wrapped.EOF(), nil
}

// Valid reports whether the bound content is readable.
func (o *Object) Valid() (bool, error) {
	if err := o.ensureReady(); err != nil {
		return false, err
	}
	return o.wrapped.Valid(), nil
}

// Close releases the bound content and returns the object to the closed
// state. Closing does not materialize.
func (o *Object) Close() error {
	if o.state == StateClosed {
		return errNotOpen()
	}

	var err error
	if o.wrapped != nil {
		err = o.wrapped.Close()
		o.wrapped = nil
	}
	o.state = StateClosed
	return err
}

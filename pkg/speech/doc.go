// Package speech assembles auditory descriptions into their final output forms:
// plain text, SSML markup or a structured fragment list.
package speech

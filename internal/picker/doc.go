// Package picker talks to the Google Photos Picker API.
//
// Client is a thin typed wrapper over the sessions and mediaItems endpoints.
// SessionManager holds the single remote picking session the kiosk keeps
// open, replacing it before it expires and deleting it once its selection
// has been consumed.
package picker

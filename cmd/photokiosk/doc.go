// Command photokiosk runs and administers a Google Photos Picker kiosk.
//
// "serve" starts the JSON API the slideshow front end talks to. The other
// commands authorize the Google account, pick and cache media from a
// terminal, inspect or clear the cache, and check the installation.
package main

// Command sequoia-bands subscribes to a multispectral camera image stream and
// shows one exact-color mask per spectral band.
package main

func main() {
	Execute()
}

// Command playerctl runs the media player controller service.
package main

func main() {
	Execute()
}

// Command surfplot renders segmentation surfaces and meshes to images.
package main

func main() {
	Execute()
}

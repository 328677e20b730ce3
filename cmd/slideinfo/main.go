// slideinfo prints the structure of whole-slide image files.
//
// Usage:
//
//	slideinfo [--properties] [--associated] [--vendor-only] <filename> [<filename> ...]
//
// Options:
//
//	-p, --properties   Print all properties.
//	-a, --associated   Print associated image names and sizes.
//	--vendor-only      Print only the detected vendor, one per file.
//	-h, --help         Show this help message.
//	--version          Show version information.
//
// Exit codes:
//
//	0: All files recognized
//	1: One or more files not recognized or unreadable
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	goslide "github.com/mrjoshuak/go-slide"
)

func main() {
	properties := flag.BoolP("properties", "p", false, "print all properties")
	associated := flag.BoolP("associated", "a", false, "print associated images")
	vendorOnly := flag.Bool("vendor-only", false, "print only the detected vendor")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("slideinfo (go-slide %s)\n", goslide.Version())
		return
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: slideinfo [options] <filename> ...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	failed := false
	for _, path := range flag.Args() {
		if !describe(path, *properties, *associated, *vendorOnly) {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func describe(path string, properties, associated, vendorOnly bool) bool {
	if vendorOnly {
		vendor := goslide.DetectVendor(path)
		if vendor == "" {
			fmt.Printf("%s: not recognized\n", path)
			return false
		}
		fmt.Printf("%s: %s\n", path, vendor)
		return true
	}

	s := goslide.Open(path)
	if s == nil {
		fmt.Fprintf(os.Stderr, "%s: not a recognized slide file\n", path)
		return false
	}
	defer s.Close()
	if err := s.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return false
	}

	w, h := s.Level0Dimensions()
	fmt.Printf("%s:\n", path)
	fmt.Printf("  vendor: %s\n", s.PropertyValue("slide.vendor"))
	fmt.Printf("  size: %dx%d\n", w, h)
	fmt.Printf("  levels: %d\n", s.LevelCount())
	for i := int32(0); i < s.LevelCount(); i++ {
		lw, lh := s.LevelDimensions(i)
		fmt.Printf("    level %d: %dx%d downsample %g\n", i, lw, lh, s.LevelDownsample(i))
	}
	if n := s.ICCProfileSize(); n > 0 {
		fmt.Printf("  icc profile: %d bytes\n", n)
	}

	if properties {
		fmt.Println("  properties:")
		for _, name := range s.PropertyNames() {
			fmt.Printf("    %s: %s\n", name, s.PropertyValue(name))
		}
	}
	if associated {
		names := s.AssociatedImageNames()
		if len(names) > 0 {
			fmt.Println("  associated images:")
			for _, name := range names {
				aw, ah := s.AssociatedImageDimensions(name)
				fmt.Printf("    %s: %dx%d\n", name, aw, ah)
			}
		}
	}
	if err := s.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return false
	}
	return true
}

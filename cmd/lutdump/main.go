// Prints the label mappings held in a LUT file or block store.
// Each line is "from to" for a label whose canonical label differs from itself.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/janelia-flyem/lsms/blocks"
	"github.com/janelia-flyem/lsms/labels"
	"github.com/janelia-flyem/lsms/lsms"
	"github.com/janelia-flyem/lsms/storage"
	_ "github.com/janelia-flyem/lsms/storage/badger"
)

var (
	storePath = flag.String("store", "", "Read the LUT from this badger store instead of a file")
	name      = flag.String("name", "seg", "Name of the LUT within the store")
	summary   = flag.Bool("summary", false, "Only print label counts")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lutdump [options] [lut file]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	lut, err := readLUT()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *summary {
		fmt.Printf("%d labels, %d canonical\n", lut.MaxLabel(), lut.NumCanonical())
		return
	}
	if _, err := lut.WriteMappings(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readLUT() (*labels.LUT, error) {
	if *storePath != "" {
		kv, _, err := storage.NewStore(storage.Config{Engine: "badger", Path: *storePath, ReadOnly: true})
		if err != nil {
			return nil, err
		}
		defer kv.Close()
		return blocks.New(kv, lsms.Uncompressed, 0).GetLUT(*name)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	buf, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		return nil, err
	}
	lut := new(labels.LUT)
	if _, err := lut.UnmarshalMsg(buf); err != nil {
		return nil, fmt.Errorf("can't decode LUT %s: %v", flag.Arg(0), err)
	}
	return lut, nil
}

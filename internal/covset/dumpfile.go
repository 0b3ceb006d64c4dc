package covset

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/binrts/binrts/internal/errs"
)

// LoadDumpFile reads a coverage dump file and returns the canonicalized
// offset set for each module it mentions, for use by the "diff"
// subcommand. It accepts the same binary, text, and symbolic BB record
// forms as internal/resolver's rewriter, since diff only cares about
// offsets.
func LoadDumpFile(path string) (map[string]Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrapf(err, "covset: open %q", path)
	}
	defer f.Close()
	return parseOffsets(f)
}

func parseOffsets(r io.Reader) (map[string]Set, error) {
	br := bufio.NewReader(r)
	out := map[string]Set{}
	var cur string

	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		trimmed := strings.TrimSuffix(line, "\n")

		if !strings.HasPrefix(trimmed, "\t") {
			if trimmed == "" {
				if err != nil {
					break
				}
				continue
			}
			cur = strings.SplitN(trimmed, "\t", 2)[0]
			if _, ok := out[cur]; !ok {
				out[cur] = nil
			}
			if err != nil {
				break
			}
			continue
		}

		body := strings.TrimPrefix(trimmed, "\t")
		switch {
		case strings.HasPrefix(body, "BBs: "):
			n, perr := strconv.Atoi(strings.TrimPrefix(body, "BBs: "))
			if perr != nil {
				return nil, errs.Wrapf(perr, "covset: bad BBs header %q", line)
			}
			for i := 0; i < n; i++ {
				buf := make([]byte, 8)
				if _, rerr := io.ReadFull(br, buf); rerr != nil {
					return nil, errs.Wrap(rerr, "covset: truncated binary BB run")
				}
				out[cur] = append(out[cur], binary.LittleEndian.Uint64(buf))
			}
			br.ReadString('\n')
		case strings.HasPrefix(body, "+0x"):
			fields := strings.Split(body, "\t")
			offset, perr := strconv.ParseUint(strings.TrimPrefix(fields[0], "+0x"), 16, 64)
			if perr != nil {
				return nil, errs.Wrapf(perr, "covset: bad offset in %q", body)
			}
			out[cur] = append(out[cur], offset)
		}

		if err != nil {
			break
		}
	}

	for mod, offsets := range out {
		out[mod] = Canonicalize(offsets)
	}
	return out, nil
}

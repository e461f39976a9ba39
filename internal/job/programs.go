package job

import (
	"fmt"
	"sort"
	"strconv"

	"strideos/internal/abi"
)

// Builder turns manifest arguments into a program.
type Builder func(args []string) (Program, error)

var registry = map[string]Builder{
	"hello":    buildHello,
	"counter":  buildCounter,
	"sleep":    buildSleep,
	"spinner":  buildSpinner,
	"priority": buildPriority,
	"badptr":   buildBadPtr,
	"badfd":    buildBadFD,
	"badtime":  buildBadTime,
	"badutf8":  buildBadUTF8,
	"fault":    buildFault,
}

// Lookup builds the named program.
func Lookup(name string, args []string) (Program, error) {
	b, ok := registry[name]
	if !ok {
		return Program{}, fmt.Errorf("job: unknown program %q", name)
	}
	p, err := b(args)
	if err != nil {
		return Program{}, fmt.Errorf("job: %s: %w", name, err)
	}
	return p, nil
}

// Names lists the registered programs in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func intArg(args []string, i int, def int) (int, error) {
	if i >= len(args) {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	return v, nil
}

func stringArg(args []string, i int, def string) string {
	if i >= len(args) {
		return def
	}
	return args[i]
}

func buildHello(args []string) (Program, error) {
	msg := []byte("Hello, world!\n")
	return Program{
		Name:  "hello",
		Image: msg,
		Main: func(env Env) {
			Write(env, abi.FDStdout, env.Layout().Start, uint64(len(msg)))
		},
	}, nil
}

// counter [n] [label]: prints n lines, yielding after each.
func buildCounter(args []string) (Program, error) {
	n, err := intArg(args, 0, 3)
	if err != nil {
		return Program{}, err
	}
	label := stringArg(args, 1, "counter")
	return Program{
		Name: "counter",
		Main: func(env Env) {
			for i := 1; i <= n; i++ {
				Print(env, fmt.Sprintf("%s %d/%d\n", label, i, n))
				Yield(env)
			}
		},
	}, nil
}

// sleep [ms]: yields until the kernel clock has moved ms milliseconds.
func buildSleep(args []string) (Program, error) {
	ms, err := intArg(args, 0, 10)
	if err != nil {
		return Program{}, err
	}
	wait := uint64(ms) * 1000
	return Program{
		Name: "sleep",
		Main: func(env Env) {
			start, ok := Now(env)
			if !ok {
				Exit(env, -1)
				return
			}
			for {
				now, ok := Now(env)
				if !ok {
					Exit(env, -1)
					return
				}
				if now.Micros()-start.Micros() >= wait {
					break
				}
				Yield(env)
			}
			Print(env, fmt.Sprintf("slept %d ms\n", ms))
		},
	}, nil
}

// spinner: yields forever and relies on the kernel's suspend cap to stop it.
func buildSpinner(args []string) (Program, error) {
	return Program{
		Name: "spinner",
		Main: func(env Env) {
			for {
				Yield(env)
			}
		},
	}, nil
}

// priority [prio] [n]: sets its own priority then yields n times.
func buildPriority(args []string) (Program, error) {
	prio, err := intArg(args, 0, 16)
	if err != nil {
		return Program{}, err
	}
	n, err := intArg(args, 1, 5)
	if err != nil {
		return Program{}, err
	}
	return Program{
		Name: "priority",
		Main: func(env Env) {
			if SetPriority(env, int64(prio)) < 0 {
				Print(env, fmt.Sprintf("priority %d rejected\n", prio))
				Exit(env, -1)
				return
			}
			for i := 0; i < n; i++ {
				Yield(env)
			}
			Print(env, fmt.Sprintf("priority %d done\n", prio))
		},
	}, nil
}

// badptr: writes from memory it does not own, then reports the results.
func buildBadPtr(args []string) (Program, error) {
	return Program{
		Name:  "badptr",
		Image: []byte("mine\n"),
		Main: func(env Env) {
			l := env.Layout()
			straddle := Write(env, abi.FDStdout, l.End-2, 4)
			unmapped := Write(env, abi.FDStdout, 0, 4)
			below := Write(env, abi.FDStdout, l.StackTop-0x2000, 4)
			Print(env, fmt.Sprintf("badptr: straddle=%d unmapped=%d below-stack=%d\n", straddle, unmapped, below))
		},
	}, nil
}

func buildBadFD(args []string) (Program, error) {
	msg := []byte("to stderr\n")
	return Program{
		Name:  "badfd",
		Image: msg,
		Main: func(env Env) {
			ret := Write(env, 2, env.Layout().Start, uint64(len(msg)))
			Print(env, fmt.Sprintf("badfd: write(2)=%d\n", ret))
		},
	}, nil
}

func buildBadTime(args []string) (Program, error) {
	return Program{
		Name: "badtime",
		Main: func(env Env) {
			ret := GetTime(env, env.Layout().End-8)
			Print(env, fmt.Sprintf("badtime: get_time=%d\n", ret))
		},
	}, nil
}

func buildBadUTF8(args []string) (Program, error) {
	bad := []byte{0xff, 0xfe, 'x', '\n'}
	return Program{
		Name:  "badutf8",
		Image: bad,
		Main: func(env Env) {
			ret := Write(env, abi.FDStdout, env.Layout().Start, uint64(len(bad)))
			Print(env, fmt.Sprintf("badutf8: write=%d\n", ret))
		},
	}, nil
}

// fault: crashes; the kernel kills it and moves on.
func buildFault(args []string) (Program, error) {
	return Program{
		Name: "fault",
		Main: func(env Env) {
			var table []int
			_ = table[len(args)+1]
		},
	}, nil
}

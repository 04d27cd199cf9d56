// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classifier

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go@latest -cc clang -target bpfel Firewall classifier.c -- -I../../vmlinux

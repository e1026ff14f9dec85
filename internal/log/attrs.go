package log

import "log/slog"

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func Command[T ~string](cmd T) slog.Attr {
	return slog.String("command", string(cmd))
}

func Kind[T ~string](kind T) slog.Attr {
	return slog.String("kind", string(kind))
}

func FlowName(name string) slog.Attr {
	return slog.String("flow", name)
}

func RemoteID(id string) slog.Attr {
	return slog.String("remote_id", id)
}

func Snapshot(name string) slog.Attr {
	return slog.String("snapshot", name)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

func Seq(seq int64) slog.Attr {
	return slog.Int64("seq", seq)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

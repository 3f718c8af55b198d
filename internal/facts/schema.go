package facts

// builtinSchema declares the telemetry predicates emitted by the
// browser layer and the execution engine, plus the standard derived
// views. Loaded when no schema file is configured, unless the config
// disables builtin rules.
const builtinSchema = `
Decl command_started(Command, IntentTag, Timestamp).
Decl command_completed(Command, Status, DurationMs).
Decl attempt_failed(Command, Attempt, Reason).
Decl fallback_applied(Command, Strategy).
Decl plan_completed(PlanId, IntentTag, Status).
Decl navigation_event(Session, Url, Timestamp).
Decl console_event(Level, Message, Timestamp).
Decl net_request(RequestId, Method, Url, Timestamp).
Decl net_response(RequestId, Status, Timestamp).

Decl failed_command(Command).
failed_command(Cmd) :- command_completed(Cmd, "failed", _).

Decl recovered_command(Command, Strategy).
recovered_command(Cmd, Strategy) :-
    fallback_applied(Cmd, Strategy),
    command_completed(Cmd, "completed", _).
`
